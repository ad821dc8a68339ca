package stage

// Health reports whether a stage's executor could run right now.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Ready reports a usable executor.
func Ready(name string) Health { return Health{Name: name, Ready: true} }

// NotReady reports an executor that would fail, with err as the reason.
func NotReady(name string, err error) Health {
	h := Health{Name: name}
	if err != nil {
		h.Detail = err.Error()
	}
	return h
}
