package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

var (
	schoolColumns = []string{
		"id", "name", "address", "district", "state", "principal_name", "contact_phone", "contact_email",
		"created_at", "updated_at",
	}
	classColumns = []string{
		"c.id", "c.school_id", "c.name", "c.grade", "c.section", "c.academic_year", "c.teacher_id", "c.created_at",
		"COALESCE(u.name, '') AS teacher_name",
		"(SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.is_active) AS student_count",
	}
	studentColumns = []string{
		"id", "student_code", "full_name", "class_id", "school_id", "date_of_birth", "gender", "parent_name",
		"parent_phone", "is_active", "created_at", "updated_at",
	}
)

type schoolRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Address       string    `db:"address"`
	District      string    `db:"district"`
	State         string    `db:"state"`
	PrincipalName string    `db:"principal_name"`
	ContactPhone  string    `db:"contact_phone"`
	ContactEmail  string    `db:"contact_email"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (row schoolRow) school() school.School {
	return school.School{
		ID:            row.ID,
		Name:          row.Name,
		Address:       row.Address,
		District:      row.District,
		State:         row.State,
		PrincipalName: row.PrincipalName,
		ContactPhone:  row.ContactPhone,
		ContactEmail:  row.ContactEmail,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

type classRow struct {
	ID           string      `db:"id"`
	SchoolID     string      `db:"school_id"`
	Name         string      `db:"name"`
	Grade        string      `db:"grade"`
	Section      string      `db:"section"`
	AcademicYear string      `db:"academic_year"`
	TeacherID    null.String `db:"teacher_id"`
	CreatedAt    time.Time   `db:"created_at"`
	TeacherName  string      `db:"teacher_name"`
	StudentCount int         `db:"student_count"`
}

func (row classRow) class() school.Class {
	return school.Class{
		ID:           row.ID,
		SchoolID:     row.SchoolID,
		Name:         row.Name,
		Grade:        row.Grade,
		Section:      row.Section,
		AcademicYear: row.AcademicYear,
		TeacherID:    row.TeacherID.String,
		CreatedAt:    row.CreatedAt.UTC(),
		TeacherName:  row.TeacherName,
		StudentCount: row.StudentCount,
	}
}

type studentRow struct {
	ID          string      `db:"id"`
	Code        string      `db:"student_code"`
	FullName    string      `db:"full_name"`
	ClassID     null.String `db:"class_id"`
	SchoolID    string      `db:"school_id"`
	DateOfBirth null.Time   `db:"date_of_birth"`
	Gender      string      `db:"gender"`
	ParentName  string      `db:"parent_name"`
	ParentPhone string      `db:"parent_phone"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row studentRow) student() school.Student {
	std := school.Student{
		ID:          row.ID,
		Code:        row.Code,
		FullName:    row.FullName,
		ClassID:     row.ClassID.String,
		SchoolID:    row.SchoolID,
		DateOfBirth: row.DateOfBirth,
		Gender:      row.Gender,
		ParentName:  row.ParentName,
		ParentPhone: row.ParentPhone,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if std.DateOfBirth.Valid {
		std.DateOfBirth.Time = core.Day(std.DateOfBirth.Time)
	}
	return std
}

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) school.Repository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	sch.ID = uuid.New().String()
	query := psql.Insert("schools").Columns(schoolColumns...).Values(
		sch.ID, sch.Name, sch.Address, sch.District, sch.State, sch.PrincipalName, sch.ContactPhone,
		sch.ContactEmail, sch.CreatedAt.UTC(), sch.UpdatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	schools, err := repo.QuerySchools(ctx, school.SchoolFilter{IDs: []string{id}}, exec...)
	if err != nil {
		return school.School{}, err
	}
	if len(schools) == 0 {
		return school.School{}, school.ErrNotFound
	}
	return schools[0], nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, filter school.SchoolFilter, exec ...core.DBExecutor) ([]school.School, error) {
	query := psql.Select(schoolColumns...).From("schools").OrderBy("name ASC")
	if filter.IDs != nil {
		query = query.Where(sq.Eq{"id": validIDs(filter.IDs)})
	}
	if filter.District != "" {
		query = query.Where(sq.Eq{"district": filter.District})
	}

	var rows []schoolRow
	if err := repo.selectAll(ctx, repo.getExec(exec), query, &rows); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.school())
	}
	return schools, nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	if !validID(sch.ID) {
		return school.School{}, school.ErrNotFound
	}
	query := psql.Update("schools").SetMap(map[string]interface{}{
		"name":           sch.Name,
		"address":        sch.Address,
		"district":       sch.District,
		"state":          sch.State,
		"principal_name": sch.PrincipalName,
		"contact_phone":  sch.ContactPhone,
		"contact_email":  sch.ContactEmail,
		"updated_at":     sch.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": sch.ID})

	n, err := repo.execute(ctx, repo.getExec(exec), query)
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class, exec ...core.DBExecutor) (school.Class, error) {
	cls.ID = uuid.New().String()
	query := psql.Insert("classes").
		Columns("id", "school_id", "name", "grade", "section", "academic_year", "teacher_id", "created_at").
		Values(
			cls.ID, cls.SchoolID, cls.Name, cls.Grade, cls.Section, cls.AcademicYear,
			null.NewString(cls.TeacherID, cls.TeacherID != ""), cls.CreatedAt.UTC(),
		)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return repo.GetClass(ctx, cls.ID, exec...)
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	classes, err := repo.QueryClasses(ctx, school.ClassFilter{IDs: []string{id}}, exec...)
	if err != nil {
		return school.Class{}, err
	}
	if len(classes) == 0 {
		return school.Class{}, school.ErrNotFound
	}
	return classes[0], nil
}

func (repo schoolRepository) QueryClasses(ctx context.Context, filter school.ClassFilter, exec ...core.DBExecutor) ([]school.Class, error) {
	query := psql.Select(classColumns...).
		From("classes c").
		LeftJoin("users u ON u.id = c.teacher_id").
		OrderBy("c.name ASC")
	if filter.IDs != nil {
		query = query.Where(sq.Eq{"c.id": validIDs(filter.IDs)})
	}
	if filter.SchoolID != "" {
		if !validID(filter.SchoolID) {
			return []school.Class{}, nil
		}
		query = query.Where(sq.Eq{"c.school_id": filter.SchoolID})
	}
	if filter.TeacherID != "" {
		if !validID(filter.TeacherID) {
			return []school.Class{}, nil
		}
		query = query.Where(sq.Eq{"c.teacher_id": filter.TeacherID})
	}

	var rows []classRow
	if err := repo.selectAll(ctx, repo.getExec(exec), query, &rows); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (repo schoolRepository) CreateStudent(ctx context.Context, std school.Student, exec ...core.DBExecutor) (school.Student, error) {
	std.ID = uuid.New().String()
	query := psql.Insert("students").Columns(studentColumns...).Values(
		std.ID, std.Code, std.FullName, null.NewString(std.ClassID, std.ClassID != ""), std.SchoolID,
		std.DateOfBirth, std.Gender, std.ParentName, std.ParentPhone, std.IsActive,
		std.CreatedAt.UTC(), std.UpdatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return school.Student{}, trapUniqueErr(err, school.ErrStudentCodeExists, "inserting student")
	}
	return std, nil
}

func (repo schoolRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (school.Student, error) {
	if !validID(id) {
		return school.Student{}, school.ErrNotFound
	}
	var rows []studentRow
	query := psql.Select(studentColumns...).From("students").Where(sq.Eq{"id": id})
	if err := repo.selectAll(ctx, repo.getExec(exec), query, &rows); err != nil {
		return school.Student{}, errors.Wrap(err, "finding student")
	}
	if len(rows) == 0 {
		return school.Student{}, school.ErrNotFound
	}
	return rows[0].student(), nil
}

func (repo schoolRepository) queryStudents(ctx context.Context, query sq.SelectBuilder, exec core.DBExecutor) ([]school.Student, error) {
	var rows []studentRow
	if err := repo.selectAll(ctx, exec, query.OrderBy("full_name ASC"), &rows); err != nil {
		return nil, err
	}
	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo schoolRepository) QueryStudents(ctx context.Context, filter school.StudentFilter, exec ...core.DBExecutor) ([]school.Student, error) {
	query := psql.Select(studentColumns...).From("students")
	if filter.SchoolID != "" {
		if !validID(filter.SchoolID) {
			return []school.Student{}, nil
		}
		query = query.Where(sq.Eq{"school_id": filter.SchoolID})
	}
	if filter.ClassID != "" {
		if !validID(filter.ClassID) {
			return []school.Student{}, nil
		}
		query = query.Where(sq.Eq{"class_id": filter.ClassID})
	}
	// students with FullName or Code matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		query = query.Where(sq.Or{sq.ILike{"full_name": val}, sq.ILike{"student_code": val}})
	}
	if filter.IsActive != nil {
		query = query.Where(sq.Eq{"is_active": *filter.IsActive})
	}

	students, err := repo.queryStudents(ctx, query, repo.getExec(exec))
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo schoolRepository) UpdateStudent(ctx context.Context, std school.Student, exec ...core.DBExecutor) (school.Student, error) {
	if !validID(std.ID) {
		return school.Student{}, school.ErrNotFound
	}
	query := psql.Update("students").SetMap(map[string]interface{}{
		"student_code":  std.Code,
		"full_name":     std.FullName,
		"class_id":      null.NewString(std.ClassID, std.ClassID != ""),
		"date_of_birth": std.DateOfBirth,
		"gender":        std.Gender,
		"parent_name":   std.ParentName,
		"parent_phone":  std.ParentPhone,
		"is_active":     std.IsActive,
		"updated_at":    std.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": std.ID})

	n, err := repo.execute(ctx, repo.getExec(exec), query)
	if err != nil {
		return school.Student{}, trapUniqueErr(err, school.ErrStudentCodeExists, "updating student")
	}
	if n == 0 {
		return school.Student{}, school.ErrNotFound
	}
	return std, nil
}

func (repo schoolRepository) CheckStudentCodeUniqueness(ctx context.Context, schoolID, code string, exec ...core.DBExecutor) error {
	if !validID(schoolID) {
		return nil
	}
	query := psql.Select("1").From("students").Where(sq.Eq{"school_id": schoolID, "student_code": code})
	exists, err := repo.exists(ctx, repo.getExec(exec), query)
	if err != nil {
		return errors.Wrap(err, "checking student code uniqueness")
	}
	if exists {
		return school.ErrStudentCodeExists
	}
	return nil
}

func (repo schoolRepository) FetchActiveRoster(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Student, error) {
	if !validID(classID) {
		return nil, school.ErrNotFound
	}
	query := psql.Select(studentColumns...).From("students").Where(sq.Eq{"class_id": classID, "is_active": true})
	students, err := repo.queryStudents(ctx, query, repo.getExec(exec))
	if err != nil {
		return nil, errors.Wrap(err, "fetching roster")
	}
	return students, nil
}
