package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) InsertSession(_ context.Context, sess attendance.Session, _ ...core.DBExecutor) (attendance.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess.ClassName = ""
	repo.db.sessions = append(repo.db.sessions, sess)
	return sess, nil
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, records []attendance.Record, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, rec := range records {
		rec.Date = core.Day(rec.Date)
		rec.SchoolID = ""
		key := recordKey{studentID: rec.StudentID, date: rec.Date}
		if orig, ok := repo.db.records[key]; ok {
			rec.CreatedAt = orig.CreatedAt
		}
		repo.db.records[key] = rec
	}
	return nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.RecordFilter, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.records {
		if filter.StudentIDs != nil && !core.StringIn(rec.StudentID, filter.StudentIDs...) {
			continue
		}
		if filter.ClassIDs != nil && !core.StringIn(rec.ClassID, filter.ClassIDs...) {
			continue
		}
		if !filter.Period.Contains(rec.Date) {
			continue
		}
		cls, ok := repo.db.classes[rec.ClassID]
		if !ok {
			continue
		}
		if filter.SchoolIDs != nil && !core.StringIn(cls.SchoolID, filter.SchoolIDs...) {
			continue
		}
		if filter.District != "" && repo.db.schools[cls.SchoolID].District != filter.District {
			continue
		}
		rec.SchoolID = cls.SchoolID
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date.Equal(records[j].Date) {
			return records[i].StudentID < records[j].StudentID
		}
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

func (repo *attendanceRepository) QuerySessions(_ context.Context, filter attendance.SessionFilter, _ ...core.DBExecutor) ([]attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]attendance.Session, 0)
	for _, sess := range repo.db.sessions {
		if filter.ClassIDs != nil && !core.StringIn(sess.ClassID, filter.ClassIDs...) {
			continue
		}
		if filter.StartedBy != "" && sess.StartedBy != filter.StartedBy {
			continue
		}
		if !filter.Period.Contains(sess.Date) {
			continue
		}
		sess.ClassName = repo.db.classes[sess.ClassID].Name
		sessions = append(sessions, sess)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	if filter.Limit > 0 && len(sessions) > filter.Limit {
		sessions = sessions[:filter.Limit]
	}
	return sessions, nil
}
