package symbol

import "errors"

var (
	errShortEhdr = errors.New("symbol: truncated ELF header")
	errBadMagic  = errors.New("symbol: missing ELF magic")
	errNot64     = errors.New("symbol: not an ELFCLASS64 object")
)
