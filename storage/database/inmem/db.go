package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

type recordKey struct {
	studentID string
	date      time.Time
}

// DB is a process local store. A single lock guards every table so joins see a consistent state.
type DB struct {
	mutex sync.RWMutex

	users    map[string]user.User
	schools  map[string]school.School
	classes  map[string]school.Class
	students map[string]school.Student
	sessions []attendance.Session
	records  map[recordKey]attendance.Record
}

func Open() *DB {
	return &DB{
		users:    make(map[string]user.User),
		schools:  make(map[string]school.School),
		classes:  make(map[string]school.Class),
		students: make(map[string]school.Student),
		records:  make(map[recordKey]attendance.Record),
	}
}

// Flush empties every table.
func (db *DB) Flush() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.users = make(map[string]user.User)
	db.schools = make(map[string]school.School)
	db.classes = make(map[string]school.Class)
	db.students = make(map[string]school.Student)
	db.sessions = nil
	db.records = make(map[recordKey]attendance.Record)
}

func newID() string {
	return uuid.New().String()
}

// sortByName orders n items by the name returned by key, using English collation; ties keep ID order.
func sortByName(n int, key func(i int) (name, id string), swap func(i, j int)) {
	col := collate.New(language.English, collate.IgnoreCase)
	sort.Sort(byName{n: n, key: key, swap: swap, col: col})
}

type byName struct {
	n    int
	key  func(i int) (name, id string)
	swap func(i, j int)
	col  *collate.Collator
}

func (bn byName) Len() int      { return bn.n }
func (bn byName) Swap(i, j int) { bn.swap(i, j) }
func (bn byName) Less(i, j int) bool {
	ni, idi := bn.key(i)
	nj, idj := bn.key(j)
	if c := bn.col.CompareString(ni, nj); c != 0 {
		return c < 0
	}
	return idi < idj
}
