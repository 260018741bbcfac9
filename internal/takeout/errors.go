package takeout

import "errors"

var ErrUnknownKind = errors.New("unknown takeout kind")
