package logx

type nop struct{}

var _ Logger = nop{}

// Nop returns a Logger that drops everything. Constructors fall back to it
// when they are given a nil logger.
func Nop() Logger { return nop{} }

func (nop) Debug(string, ...Field) {}
func (nop) Info(string, ...Field)  {}
func (nop) Warn(string, ...Field)  {}
func (nop) Error(string, ...Field) {}
func (n nop) With(...Field) Logger { return n }
func (nop) Sync() error            { return nil }
