package workflow

// readable is the adapter's output buffer. It is guarded by the adapter mutex.
type readable struct {
	buf           []any
	length        int
	highWaterMark int
	objectMode    bool

	needReadable bool
	ended        bool
	endEmitted   bool
	flowing      bool

	// signal is closed and replaced whenever data or the end arrives.
	signal chan struct{}
}

func newReadable(mode BufferingMode, highWaterMark int) *readable {
	return &readable{
		highWaterMark: highWaterMark,
		objectMode:    mode == ObjectMode,
		signal:        make(chan struct{}),
	}
}

func (r *readable) size(item any) int {
	if r.objectMode {
		return 1
	}
	switch v := item.(type) {
	case []byte:
		return len(v)
	case string:
		return len(v)
	default:
		return 1
	}
}

func (r *readable) push(item any) {
	r.buf = append(r.buf, item)
	r.length += r.size(item)
	r.needReadable = false
	r.wake()
}

func (r *readable) end() {
	if r.ended {
		return
	}
	r.ended = true
	r.wake()
}

func (r *readable) shift() (any, bool) {
	if len(r.buf) == 0 {
		return nil, false
	}
	item := r.buf[0]
	r.buf[0] = nil
	r.buf = r.buf[1:]
	r.length -= r.size(item)
	return item, true
}

// take removes whole items until at least sizeHint units were taken. A
// non-positive hint takes everything.
func (r *readable) take(sizeHint int) []any {
	var (
		items []any
		taken int
	)
	for len(r.buf) > 0 && (sizeHint <= 0 || taken < sizeHint) {
		item, _ := r.shift()
		taken += r.size(item)
		items = append(items, item)
	}
	return items
}

func (r *readable) belowHighWaterMark() bool {
	return r.length < r.highWaterMark
}

func (r *readable) wake() {
	close(r.signal)
	r.signal = make(chan struct{})
}
