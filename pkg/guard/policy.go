package guard

// defaultLocked is the process-wide initial lock state applied to buffers
// whose construction does not say otherwise. It is read exactly once per
// construction and is not retroactive: changing it never touches buffers
// that already exist.
//
// The value is not synchronized. Set it during startup, before buffers are
// constructed; concurrent mutation while constructors run requires external
// coordination. Callers that want an explicit, race-free policy should use
// the StartLocked/StartUnlocked options instead.
var defaultLocked bool

// SetDefaultLocked sets the initial lock state for subsequently constructed
// buffers. Buffers constructed with StartLocked or StartUnlocked ignore it.
func SetDefaultLocked(locked bool) {
	defaultLocked = locked
}

// DefaultLocked reports the current process-wide default initial lock state.
func DefaultLocked() bool {
	return defaultLocked
}

type config struct {
	wipeSource bool
	lockSet    bool
	locked     bool
}

// Option adjusts construction of a Buffer.
type Option func(*config)

// WipeSource zeroes the caller-supplied source slice immediately after its
// contents have been copied into the guarded region. This mutates the
// caller's data: after construction the original slice is all zero bytes,
// and the only remaining copy of the secret is the guarded one.
func WipeSource() Option {
	return func(c *config) { c.wipeSource = true }
}

// StartLocked constructs the buffer in the LOCKED state regardless of the
// process-wide default.
func StartLocked() Option {
	return func(c *config) { c.lockSet, c.locked = true, true }
}

// StartUnlocked constructs the buffer in the UNLOCKED state regardless of
// the process-wide default.
func StartUnlocked() Option {
	return func(c *config) { c.lockSet, c.locked = true, false }
}

// initialLocked resolves the construction-time lock state, consulting the
// process default only when no explicit option was given.
func (c *config) initialLocked() bool {
	if c.lockSet {
		return c.locked
	}
	return defaultLocked
}
