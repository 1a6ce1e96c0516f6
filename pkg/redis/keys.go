package redis

import "strings"

const (
	defaultNamespace  = "sl"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
	shiftsPrefix      = "shifts"
)

// Keyspace builds colon-separated keys under a namespace. The zero value
// uses "sl".
type Keyspace struct {
	Namespace string
}

// IdempotencyKey is sl:idempotency:<scope>:<id>.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.join(idempotencyPrefix, scope, id)
}

// LockKey is sl:lock:<name>.
func (k Keyspace) LockKey(name string) string {
	return k.join(lockPrefix, name)
}

// ShiftChangeChannel carries "changed" signals for one store's shifts.
func (k Keyspace) ShiftChangeChannel(storeID string) string {
	return k.join(shiftsPrefix, "store", storeID)
}

func (k Keyspace) join(parts ...string) string {
	ns := k.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
