package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// Post pipeline columns.
	StatusProduction  Status = "production"
	StatusApproval    Status = "approval"
	StatusRevision    Status = "revision"
	StatusApproved    Status = "approved"
	StatusPublished   Status = "published"
	StatusOffPlatform Status = "off_platform"

	// Lead pipeline columns.
	StatusProspecting  Status = "prospecting"
	StatusContacted    Status = "contacted"
	StatusMeeting      Status = "meeting"
	StatusProposalSent Status = "proposal_sent"
	StatusWon          Status = "won"
	StatusLost         Status = "lost"

	// Task board columns.
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

const (
	BoardPosts BoardKind = "posts"
	BoardLeads BoardKind = "leads"
	BoardTasks BoardKind = "tasks"
)

const (
	Revenue TxnType = "revenue"
	Expense TxnType = "expense"
)

type (
	Status    string
	BoardKind string
	TxnType   string

	// Board is a fixed, ordered column enumeration for one entity type.
	// Terminal columns stamp or clear a record's completion timestamp on
	// entry and exit.
	Board struct {
		Kind     BoardKind
		Columns  []Status
		Terminal map[Status]bool
	}

	Money struct {
		Cents int64
	}

	// Record is a timestamped work item living on a kanban board:
	// a post, a lead, or a task.
	Record struct {
		ID          int64
		TenantID    int64
		Board       BoardKind
		Title       string
		Status      Status
		Due         Due
		Owner       string
		Category    string
		CompletedAt *time.Time
		CreatedAt   time.Time
	}

	// Transaction is a finance ledger entry.
	Transaction struct {
		ID          int64
		TenantID    int64
		Date        time.Time
		Description string
		Type        TxnType
		Amount      Money
		Category    string
	}
)

var (
	PostBoard = Board{
		Kind: BoardPosts,
		Columns: []Status{
			StatusProduction, StatusApproval, StatusRevision,
			StatusApproved, StatusPublished, StatusOffPlatform,
		},
		Terminal: map[Status]bool{StatusPublished: true, StatusOffPlatform: true},
	}

	LeadBoard = Board{
		Kind: BoardLeads,
		Columns: []Status{
			StatusProspecting, StatusContacted, StatusMeeting,
			StatusProposalSent, StatusWon, StatusLost,
		},
		Terminal: map[Status]bool{StatusWon: true, StatusLost: true},
	}

	TaskBoard = Board{
		Kind:     BoardTasks,
		Columns:  []Status{StatusTodo, StatusDoing, StatusDone},
		Terminal: map[Status]bool{StatusDone: true},
	}
)

var (
	ErrInvalidColumn          = errors.New("invalid column")
	ErrDuplicateCompletion    = errors.New("duplicate completion")
	ErrInvalidConditionalRule = errors.New("invalid conditional rule")
	ErrMalformedTimestamp     = errors.New("malformed timestamp")
	ErrUnknownBoard           = errors.New("unknown board")
	ErrEmptyTitle             = errors.New("empty title")
	ErrEmptySchedule          = errors.New("empty schedule")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrEmptyDescription       = errors.New("empty description")
	ErrEmptyCategory          = errors.New("empty category")
	ErrInvalidTxnType         = errors.New("invalid transaction type")
)

// BoardFor returns the board configuration for a kind.
func BoardFor(kind BoardKind) (Board, error) {
	switch kind {
	case BoardPosts:
		return PostBoard, nil
	case BoardLeads:
		return LeadBoard, nil
	case BoardTasks:
		return TaskBoard, nil
	default:
		return Board{}, ErrUnknownBoard
	}
}

// Has reports whether s is one of the board's columns.
func (b Board) Has(s Status) bool {
	for _, c := range b.Columns {
		if c == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a completion/closure column.
func (b Board) IsTerminal(s Status) bool {
	return b.Terminal[s]
}

// First returns the board's entry column, where new records start.
func (b Board) First() Status {
	return b.Columns[0]
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Record) Validate() error {
	b, err := BoardFor(r.Board)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(r.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if !b.Has(r.Status) {
		return ErrInvalidColumn
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	switch t.Type {
	case Revenue, Expense:
	default:
		return ErrInvalidTxnType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
