package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Type string

const (
	TypeAdd      Type = "add"
	TypeEdit     Type = "edit"
	TypeDelete   Type = "delete"
	TypeProject  Type = "project"
	TypeTask     Type = "task"
	TypeNote     Type = "note"
	TypeHistory  Type = "history"
	TypeInsights Type = "insights"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const dateLayout = "2006-01-02"

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns c on date in loc as epoch milliseconds.
func (c Clock) On(date string, loc *time.Location) (int64, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return 0, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, loc).UnixMilli(), nil
}

type AddArgs struct {
	Start Clock
	End   Clock
	// Date is empty for today.
	Date string
}

// EditArgs and DeleteArgs address an entry by its 1-based position in the
// history shown for the selected timer.
type EditArgs struct {
	Index int
	Start Clock
	End   Clock
}

type DeleteArgs struct {
	Index int
}

type ProjectArgs struct {
	ID   string
	Name string
}

type TaskArgs struct {
	ID   string
	Name string
}

type NoteArgs struct {
	Text string
}

type DateArgs struct {
	Date string
}

type Command struct {
	Type     Type
	Raw      string
	Add      *AddArgs
	Edit     *EditArgs
	Delete   *DeleteArgs
	Project  *ProjectArgs
	Task     *TaskArgs
	Note     *NoteArgs
	History  *DateArgs
	Insights *DateArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeEdit:
		return parseEdit(input, args)
	case TypeDelete:
		return parseDelete(input, args)
	case TypeProject:
		return parseProject(input, args)
	case TypeTask:
		return parseTask(input, args)
	case TypeNote:
		return Command{Type: TypeNote, Raw: input, Note: &NoteArgs{Text: strings.Join(args, " ")}}, nil
	case TypeHistory, TypeInsights:
		return parseDate(input, Type(head), args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	if len(args) < 2 || len(args) > 3 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires start and end times (HH:MM HH:MM [YYYY-MM-DD])"}
	}
	start, end, err := parseRange(args[0], args[1])
	if err != nil {
		return Command{}, err
	}
	add := &AddArgs{Start: start, End: end}
	if len(args) == 3 {
		if add.Date, err = parseDateArg(args[2]); err != nil {
			return Command{}, err
		}
	}
	return Command{Type: TypeAdd, Raw: raw, Add: add}, nil
}

func parseEdit(raw string, args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "edit requires an entry number and start and end times"}
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return Command{}, err
	}
	start, end, err := parseRange(args[1], args[2])
	if err != nil {
		return Command{}, err
	}
	return Command{Type: TypeEdit, Raw: raw, Edit: &EditArgs{Index: idx, Start: start, End: end}}, nil
}

func parseDelete(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "delete requires an entry number"}
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Type: TypeDelete, Raw: raw, Delete: &DeleteArgs{Index: idx}}, nil
}

func parseProject(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "project requires an id and a name"}
	}
	return Command{Type: TypeProject, Raw: raw, Project: &ProjectArgs{ID: args[0], Name: strings.Join(args[1:], " ")}}, nil
}

func parseTask(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "task requires an id and a name"}
	}
	return Command{Type: TypeTask, Raw: raw, Task: &TaskArgs{ID: args[0], Name: strings.Join(args[1:], " ")}}, nil
}

func parseDate(raw string, typ Type, args []string) (Command, error) {
	if len(args) > 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes at most one date", typ)}
	}
	d := &DateArgs{}
	if len(args) == 1 {
		var err error
		if d.Date, err = parseDateArg(args[0]); err != nil {
			return Command{}, err
		}
	}
	cmd := Command{Type: typ, Raw: raw}
	if typ == TypeHistory {
		cmd.History = d
	} else {
		cmd.Insights = d
	}
	return cmd, nil
}

func parseRange(startRaw, endRaw string) (Clock, Clock, error) {
	start, err := ParseClock(startRaw)
	if err != nil {
		return Clock{}, Clock{}, err
	}
	end, err := ParseClock(endRaw)
	if err != nil {
		return Clock{}, Clock{}, err
	}
	return start, end, nil
}

// ParseClock parses HH:MM.
func ParseClock(raw string) (Clock, error) {
	invalid := &CommandError{Code: ErrCodeInvalidArgument, Message: "invalid time format. Hours: 00-23, Minutes: 00-59"}
	h, m, ok := strings.Cut(raw, ":")
	if !ok || h == "" || m == "" || len(h) > 2 || len(m) > 2 {
		return Clock{}, invalid
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, invalid
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, invalid
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(raw, "#"))
	if err != nil || n < 1 {
		return 0, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid entry number: %s", raw)}
	}
	return n, nil
}

func parseDateArg(raw string) (string, error) {
	if _, err := time.Parse(dateLayout, raw); err != nil {
		return "", &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid date %q, use YYYY-MM-DD", raw)}
	}
	return raw, nil
}
