package models

import "github.com/pkg/errors"

// ErrUnknownParam is returned by SetParam for names a model does not define.
var ErrUnknownParam = errors.New("models: unknown parameter")

func unknownParam(model, name string) error {
	return errors.Wrapf(ErrUnknownParam, "%s has no parameter %q", model, name)
}
