package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

// seedData is the layout of a seed file:
//
//	schools:
//	  - name: Mlimani Primary
//	    district: Kinondoni
//	    classes:
//	      - name: Std 4A
//	        teacher: jdoe # username or email
//	        students:
//	          - student_code: S-001
//	            full_name: Amina Juma
type seedData struct {
	Schools []seedSchool `yaml:"schools"`
}

type seedSchool struct {
	school.NewSchool `yaml:",inline"`
	Classes          []seedClass `yaml:"classes"`
}

type seedClass struct {
	school.NewClass `yaml:",inline"`
	Teacher         string              `yaml:"teacher"`
	Students        []school.NewStudent `yaml:"students"`
}

type seedCounts struct {
	schools, classes, students, skipped int
}

// seed loads schools, classes & students from a YAML file.
// Existing schools (same name & district) and classes (same name) are reused; taken student codes are skipped.
func (cli *commandLine) seed(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading seed file")
	}
	var data seedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "parsing seed file")
	}

	ctx := context.Background()
	var counts seedCounts
	for i := range data.Schools {
		if err := cli.seedSchool(ctx, &data.Schools[i], &counts); err != nil {
			return errors.Wrapf(err, "schools[%d]", i)
		}
	}
	fmt.Fprintf(cli.out, "seeded %d schools, %d classes, %d students (%d skipped)\n",
		counts.schools, counts.classes, counts.students, counts.skipped)
	return nil
}

func (cli *commandLine) seedSchool(ctx context.Context, ss *seedSchool, counts *seedCounts) error {
	if err := ss.NewSchool.Validate(cli.validate); err != nil {
		return err
	}
	schools, err := cli.schoolSvc.QuerySchools(ctx, school.SchoolFilter{District: ss.District})
	if err != nil {
		return err
	}
	var sch school.School
	for _, s := range schools {
		if strings.EqualFold(s.Name, ss.Name) {
			sch = s
			break
		}
	}
	if sch.ID == "" {
		if sch, err = cli.schoolSvc.CreateSchool(ctx, ss.NewSchool); err != nil {
			return err
		}
		counts.schools++
	}

	for i := range ss.Classes {
		if err := cli.seedClass(ctx, sch, &ss.Classes[i], counts); err != nil {
			return errors.Wrapf(err, "%s: classes[%d]", sch.Name, i)
		}
	}
	return nil
}

func (cli *commandLine) seedClass(ctx context.Context, sch school.School, sc *seedClass, counts *seedCounts) error {
	if sc.Teacher != "" {
		teacher, err := cli.usrSvc.GetByUsernameOrEmail(ctx, strings.ToLower(strings.TrimSpace(sc.Teacher)))
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return fmt.Errorf("%q: teacher not found", sc.Teacher)
			}
			return err
		}
		sc.TeacherID = teacher.ID
	}
	if err := sc.NewClass.Validate(ctx, cli.validate, cli.usrSvc, sch.ID); err != nil {
		return err
	}

	classes, err := cli.schoolSvc.QueryClasses(ctx, school.ClassFilter{SchoolID: sch.ID})
	if err != nil {
		return err
	}
	var cls school.Class
	for _, c := range classes {
		if strings.EqualFold(c.Name, sc.Name) {
			cls = c
			break
		}
	}
	if cls.ID == "" {
		if cls, err = cli.schoolSvc.CreateClass(ctx, sch.ID, sc.NewClass); err != nil {
			return err
		}
		counts.classes++
	}

	for i := range sc.Students {
		ns := sc.Students[i]
		ns.ClassID = cls.ID
		if err := ns.Validate(ctx, cli.validate, cli.schoolSvc, sch.ID); err != nil {
			var verr *core.ValidationError
			if errors.As(err, &verr) && errors.Cause(verr.Err) == school.ErrStudentCodeExists {
				counts.skipped++
				continue
			}
			return errors.Wrapf(err, "%s: students[%d]", cls.Name, i)
		}
		if _, err := cli.schoolSvc.CreateStudent(ctx, sch.ID, ns); err != nil {
			return err
		}
		counts.students++
	}
	return nil
}
