package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"permission", WrapWithCode(ErrPermissionDenied, CodePermissionDenied, "denied"), CodePermissionDenied},
		{"wrapped permission", fmt.Errorf("open camera: %w", ErrPermissionDenied), CodePermissionDenied},
		{"device", WrapWithCode(ErrDeviceUnavailable, CodeDeviceUnavailable, "busy"), CodeDeviceUnavailable},
		{"empty", ErrEmptyCapture, CodeEmptyCapture},
		{"anything else", stderrors.New("encoder crashed"), CodeDeviceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ignored") != nil {
		t.Error("Wrap(nil) != nil")
	}

	err := WrapWithCode(ErrDeviceUnavailable, CodeDeviceUnavailable, "camera already in use")
	if !IsDeviceUnavailable(err) {
		t.Error("wrapped sentinel not matched")
	}
	if GetCode(err) != CodeDeviceUnavailable {
		t.Errorf("GetCode() = %q", GetCode(err))
	}
	if GetMessage(err) != "camera already in use" {
		t.Errorf("GetMessage() = %q", GetMessage(err))
	}
	if err.Error() != "camera already in use: device unavailable" {
		t.Errorf("Error() = %q", err.Error())
	}
	if GetMessage(stderrors.New("plain")) != "plain" {
		t.Error("GetMessage() of a plain error")
	}
}
