package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sch.ID = newID()
	repo.db.schools[sch.ID] = sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sch, ok := repo.db.schools[id]; ok {
		return sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter school.SchoolFilter, _ ...core.DBExecutor) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0)
	for _, sch := range repo.db.schools {
		if filter.IDs != nil && !core.StringIn(sch.ID, filter.IDs...) {
			continue
		}
		if filter.District != "" && sch.District != filter.District {
			continue
		}
		schools = append(schools, sch)
	}
	sortByName(len(schools), func(i int) (string, string) { return schools[i].Name, schools[i].ID }, func(i, j int) { schools[i], schools[j] = schools[j], schools[i] })
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.schools[sch.ID]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	sch.CreatedAt = orig.CreatedAt
	repo.db.schools[sch.ID] = sch
	return sch, nil
}

// joinClass fills the read-only fields of cls. The caller holds the lock.
func (repo *schoolRepository) joinClass(cls school.Class) school.Class {
	cls.TeacherName = ""
	if tch, ok := repo.db.users[cls.TeacherID]; ok {
		cls.TeacherName = tch.Name
	}
	cls.StudentCount = 0
	for _, std := range repo.db.students {
		if std.ClassID == cls.ID && std.IsActive {
			cls.StudentCount++
		}
	}
	return cls
}

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls.ID = newID()
	cls.TeacherName, cls.StudentCount = "", 0
	repo.db.classes[cls.ID] = cls
	return repo.joinClass(cls), nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return repo.joinClass(cls), nil
	}
	return school.Class{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter school.ClassFilter, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]school.Class, 0)
	for _, cls := range repo.db.classes {
		if filter.IDs != nil && !core.StringIn(cls.ID, filter.IDs...) {
			continue
		}
		if filter.SchoolID != "" && cls.SchoolID != filter.SchoolID {
			continue
		}
		if filter.TeacherID != "" && cls.TeacherID != filter.TeacherID {
			continue
		}
		classes = append(classes, repo.joinClass(cls))
	}
	sortByName(len(classes), func(i int) (string, string) { return classes[i].Name, classes[i].ID }, func(i, j int) { classes[i], classes[j] = classes[j], classes[i] })
	return classes, nil
}

func (repo *schoolRepository) codeTaken(schoolID, code, excludedID string) bool {
	for _, std := range repo.db.students {
		if std.ID != excludedID && std.SchoolID == schoolID && std.Code == code {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateStudent(_ context.Context, std school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.codeTaken(std.SchoolID, std.Code, "") {
		return school.Student{}, school.ErrStudentCodeExists
	}
	std.ID = newID()
	repo.db.students[std.ID] = std
	return std, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if std, ok := repo.db.students[id]; ok {
		return std, nil
	}
	return school.Student{}, school.ErrNotFound
}

func sortStudents(students []school.Student) {
	sortByName(len(students), func(i int) (string, string) { return students[i].FullName, students[i].ID }, func(i, j int) { students[i], students[j] = students[j], students[i] })
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter school.StudentFilter, _ ...core.DBExecutor) ([]school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	kw := strings.ToLower(filter.Search)
	students := make([]school.Student, 0)
	for _, std := range repo.db.students {
		if filter.SchoolID != "" && std.SchoolID != filter.SchoolID {
			continue
		}
		if filter.ClassID != "" && std.ClassID != filter.ClassID {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(std.FullName), kw) && !strings.Contains(strings.ToLower(std.Code), kw) {
			continue
		}
		if filter.IsActive != nil && std.IsActive != *filter.IsActive {
			continue
		}
		students = append(students, std)
	}
	sortStudents(students)
	return students, nil
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, std school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.students[std.ID]
	if !ok {
		return school.Student{}, school.ErrNotFound
	}
	if repo.codeTaken(orig.SchoolID, std.Code, std.ID) {
		return school.Student{}, school.ErrStudentCodeExists
	}
	std.SchoolID = orig.SchoolID
	std.CreatedAt = orig.CreatedAt
	repo.db.students[std.ID] = std
	return std, nil
}

func (repo *schoolRepository) CheckStudentCodeUniqueness(_ context.Context, schoolID, code string, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.codeTaken(schoolID, code, "") {
		return school.ErrStudentCodeExists
	}
	return nil
}

func (repo *schoolRepository) FetchActiveRoster(_ context.Context, classID string, _ ...core.DBExecutor) ([]school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return nil, school.ErrNotFound
	}
	students := make([]school.Student, 0)
	for _, std := range repo.db.students {
		if std.ClassID == classID && std.IsActive {
			students = append(students, std)
		}
	}
	sortStudents(students)
	return students, nil
}
