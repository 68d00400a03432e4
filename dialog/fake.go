package dialog

import "sync"

// Recorder is a Presenter that keeps every alert it is given.
type Recorder struct {
	Err error

	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Present(a Alert) error {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
	return r.Err
}

func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}
