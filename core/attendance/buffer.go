package attendance

import "github.com/trezcool/mahudhurio/core/school"

// Buffer holds the draft marks of one marking session, keyed by student ID.
// It is not safe for concurrent use.
type Buffer struct {
	marks map[string]Mark
}

func NewBuffer() *Buffer {
	return &Buffer{marks: make(map[string]Mark)}
}

// SetMark creates or updates the mark of a student.
// notes replace the previous note only when supplied.
func (b *Buffer) SetMark(studentID string, status Status, notes ...string) {
	mark, ok := b.marks[studentID]
	if !ok {
		mark = Mark{StudentID: studentID}
	}
	mark.Status = status
	if len(notes) > 0 {
		mark.Notes = notes[0]
	}
	b.marks[studentID] = mark
}

// SetNotes replaces the note of a student. An unmarked student is marked present.
func (b *Buffer) SetNotes(studentID, notes string) {
	mark, ok := b.marks[studentID]
	if !ok {
		mark = Mark{StudentID: studentID, Status: StatusPresent}
	}
	mark.Notes = notes
	b.marks[studentID] = mark
}

// SetAllPresent discards every mark and marks each roster student present.
func (b *Buffer) SetAllPresent(roster []school.Student) {
	b.marks = make(map[string]Mark, len(roster))
	for _, std := range roster {
		b.marks[std.ID] = Mark{StudentID: std.ID, Status: StatusPresent}
	}
}

// Marks returns a copy of the draft.
func (b *Buffer) Marks() map[string]Mark {
	marks := make(map[string]Mark, len(b.marks))
	for id, mark := range b.marks {
		marks[id] = mark
	}
	return marks
}

func (b *Buffer) Len() int { return len(b.marks) }

func (b *Buffer) Counts() Counts {
	var counts Counts
	for _, mark := range b.marks {
		counts.Add(mark.Status)
	}
	return counts
}
