package errors

import (
	stderrors "errors"
	"testing"
)

func TestErrorWrapping(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New(KindIO, "write", cause)

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause should be unwrappable via errors.Is")
	}
	if !Is(err, KindIO) {
		t.Error("Is should recognize the KindIO classification")
	}
	if Is(err, KindWriteZero) {
		t.Error("Is should not match a different kind")
	}
}

func TestTimeoutSentinel(t *testing.T) {
	err := New(KindFutureTimeout, "poll", ErrTimeout)
	if !stderrors.Is(err, ErrTimeout) {
		t.Error("timeout error should match the ErrTimeout sentinel")
	}
}
