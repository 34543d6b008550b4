package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add      func(AddArgs) (Result, error)
	Edit     func(EditArgs) (Result, error)
	Delete   func(DeleteArgs) (Result, error)
	Project  func(ProjectArgs) (Result, error)
	Task     func(TaskArgs) (Result, error)
	Note     func(NoteArgs) (Result, error)
	History  func(DateArgs) (Result, error)
	Insights func(DateArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		return dispatch(cmd.Type, handlers.Add, cmd.Add)
	case TypeEdit:
		return dispatch(cmd.Type, handlers.Edit, cmd.Edit)
	case TypeDelete:
		return dispatch(cmd.Type, handlers.Delete, cmd.Delete)
	case TypeProject:
		return dispatch(cmd.Type, handlers.Project, cmd.Project)
	case TypeTask:
		return dispatch(cmd.Type, handlers.Task, cmd.Task)
	case TypeNote:
		return dispatch(cmd.Type, handlers.Note, cmd.Note)
	case TypeHistory:
		return dispatch(cmd.Type, handlers.History, cmd.History)
	case TypeInsights:
		return dispatch(cmd.Type, handlers.Insights, cmd.Insights)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func dispatch[A any](typ Type, handler func(A) (Result, error), args *A) (Result, error) {
	if handler == nil {
		return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", typ)}
	}
	if args == nil {
		return Result{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s arguments missing", typ)}
	}
	return handler(*args)
}
