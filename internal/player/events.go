package player

// Events receives the loop lifecycle. Callbacks run on the loop goroutine
// and must not call Stop on the same player.
//
// Exactly one of OnFinish, OnStop and OnError is delivered per loop.
// OnStart precedes it unless the sink failed to start.
type Events interface {
	OnStart()
	OnFinish()
	OnStop()
	OnError(err error)
}

// EventFuncs adapts plain functions to Events. Nil fields are skipped.
type EventFuncs struct {
	Start  func()
	Finish func()
	Stop   func()
	Error  func(err error)
}

func (f EventFuncs) OnStart() {
	if f.Start != nil {
		f.Start()
	}
}

func (f EventFuncs) OnFinish() {
	if f.Finish != nil {
		f.Finish()
	}
}

func (f EventFuncs) OnStop() {
	if f.Stop != nil {
		f.Stop()
	}
}

func (f EventFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
