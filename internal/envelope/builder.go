package envelope

import (
	"unitymcp/internal/errors"
)

// Builder constructs Result envelopes using a fluent API.
type Builder struct {
	resp *Result
}

// New creates a new envelope builder. Results start out successful.
func New() *Builder {
	return &Builder{
		resp: &Result{
			Success: true,
		},
	}
}

// Message sets the human-readable message.
func (b *Builder) Message(msg string) *Builder {
	b.resp.Message = msg
	return b
}

// Data sets the structured payload.
func (b *Builder) Data(data interface{}) *Builder {
	b.resp.Data = data
	return b
}

// Failure marks the result as failed with the given code and message.
func (b *Builder) Failure(code errors.ErrorCode, msg string) *Builder {
	b.resp.Success = false
	b.resp.Code = code
	b.resp.Message = msg
	return b
}

// Error marks the result as failed from err. A MonitorError keeps its own
// message and details; any other error is reported as "<context> error: <cause>".
func (b *Builder) Error(context string, err error) *Builder {
	if err == nil {
		return b
	}

	if me, ok := errors.As(err); ok {
		b.Failure(me.Code, me.Message)
		if me.Details != nil {
			b.resp.Data = me.Details
		}
		return b
	}

	return b.Failure(errors.InternalError, context+" error: "+err.Error())
}

// Build returns the completed envelope.
func (b *Builder) Build() *Result {
	return b.resp
}
