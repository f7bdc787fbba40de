package logsvc

import (
	"context"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

// RollbarLogger reports to rollbar (when enabled) and mirrors every entry to a standard logger.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// item is one log entry split into what rollbar takes: the extras carry the role and
// school of the user, who is sent through the item's context.
type item struct {
	msg    string
	err    error
	extras map[string]interface{}
	person *rollbar.Person
	other  []interface{}
}

// newItem reads args as error, map[string]interface{} & user.User, in any order.
// Only the first User is kept.
func newItem(msg string, args []interface{}) item {
	it := item{msg: msg}
	var usr *user.User
	for _, arg := range args {
		switch val := arg.(type) {
		case user.User:
			if usr == nil {
				usr = &val
			}
		case error:
			it.err = val
		case map[string]interface{}:
			it.extras = make(map[string]interface{}, len(val)+2)
			for k, v := range val {
				it.extras[k] = v
			}
		default:
			it.other = append(it.other, val)
		}
	}
	if usr == nil {
		return it
	}

	uname := usr.Username
	if uname == "" {
		uname = usr.Name
	}
	it.person = &rollbar.Person{Id: usr.ID, Username: uname, Email: usr.Email}
	if it.extras == nil {
		it.extras = make(map[string]interface{}, 2)
	}
	it.extras["user_role"] = usr.Role
	if usr.SchoolID != "" {
		it.extras["user_school_id"] = usr.SchoolID
	}
	return it
}

func (it item) rollbarArgs() []interface{} {
	args := append(make([]interface{}, 0, len(it.other)+4), it.msg)
	if it.err != nil {
		args = append(args, it.err)
	}
	if it.extras != nil {
		args = append(args, it.extras)
	}
	if it.person != nil {
		args = append(args, rollbar.NewPersonContext(context.Background(), it.person))
	}
	return append(args, it.other...)
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	it := newItem(msg, args)
	rollbar.Log(level, it.rollbarArgs()...)

	l.std.Println(msg)
	if it.err != nil {
		l.std.Printf("%+v\n", it.err)
	}
	if it.person != nil {
		l.std.Printf("user: %s (%s)\n", it.person.Username, it.person.Id)
	}
	if len(it.extras) > 0 {
		l.std.Printf("%+v\n", it.extras)
	}
	for _, arg := range it.other {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.DEBUG, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	l.std.Fatal(msg)
}
