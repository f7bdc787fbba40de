package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

var errSchoolRequired = errors.New("teachers and admins must be attached to a school")

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd, role, schoolID string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	schoolID = core.CleanString(schoolID)

	if !validRole(role) {
		return fmt.Errorf("%q: invalid role, must be one of %v", role, user.AllRoles)
	}
	if role == user.RoleGovernment {
		schoolID = ""
	} else {
		if schoolID == "" {
			return errSchoolRequired
		}
		if _, err := cli.schoolSvc.GetSchool(ctx, schoolID); err != nil {
			if errors.Cause(err) == school.ErrNotFound {
				return fmt.Errorf("%q: school not found", schoolID)
			}
			return err
		}
	}

	usr, err := cli.findUser(ctx, uname, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Username: uname, Email: email, CreatedAt: time.Now().UTC()}
	}
	if usr.ID != "" {
		// a username and an email of two different users
		if err := cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email, []user.User{usr}); err != nil {
			return err
		}
		if uname != "" {
			usr.Username = uname
		}
		if email != "" {
			usr.Email = email
		}
	}

	usr.Name = name
	usr.Role = role
	usr.SchoolID = schoolID
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s (%s) saved\n", usr.ID, usr.Role)
	return nil
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	for _, key := range []string{uname, email} {
		if key == "" {
			continue
		}
		usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: key})
		if errors.Cause(err) == user.ErrNotFound {
			continue
		}
		return usr, err
	}
	return user.User{}, user.ErrNotFound
}

func validRole(role string) bool {
	for _, r := range user.AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
