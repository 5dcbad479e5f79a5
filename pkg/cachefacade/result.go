package cachefacade

// Result is a response envelope. Nil fields are left out of the JSON
// encoding, so a bare success serializes as {"code":200}.
type Result[T any] struct {
	Code *int    `json:"code,omitempty" msgpack:"code,omitempty"`
	Msg  *string `json:"msg,omitempty" msgpack:"msg,omitempty"`
	Data *T      `json:"data,omitempty" msgpack:"data,omitempty"`
}

const (
	CodeOK    = 200
	CodeError = 500
)

// OK wraps data in a successful result.
func OK[T any](data T) Result[T] {
	code := CodeOK
	return Result[T]{Code: &code, Data: &data}
}

// Fail builds a result carrying only a code and message.
func Fail[T any](code int, msg string) Result[T] {
	return Result[T]{Code: &code, Msg: &msg}
}

// WithMsg returns a copy of r with msg set.
func (r Result[T]) WithMsg(msg string) Result[T] {
	r.Msg = &msg
	return r
}

// GetCode returns the code, or zero when unset.
func (r Result[T]) GetCode() int {
	if r.Code == nil {
		return 0
	}
	return *r.Code
}

func (r Result[T]) GetMsg() string {
	if r.Msg == nil {
		return ""
	}
	return *r.Msg
}

// GetData returns the payload and whether one is present.
func (r Result[T]) GetData() (T, bool) {
	if r.Data == nil {
		var zero T
		return zero, false
	}
	return *r.Data, true
}
