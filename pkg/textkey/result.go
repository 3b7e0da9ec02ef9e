package textkey

import "strconv"

// ResultFunction combines the local value of a key with the value the
// peer sent and returns the value to keep.
type ResultFunction func(local, remote string) string

// ResultAnd is the boolean AND of two "Yes"/"No" values.
func ResultAnd(local, remote string) string {
	return FormatBoolean(local == Yes && remote == Yes)
}

// ResultOr is the boolean OR of two "Yes"/"No" values.
func ResultOr(local, remote string) string {
	return FormatBoolean(local == Yes || remote == Yes)
}

// ResultMin returns the numerically smaller value. A value that does not
// parse loses against one that does.
func ResultMin(local, remote string) string {
	return compareNumbers(local, remote, func(a, b int) bool { return a <= b })
}

// ResultMax returns the numerically larger value.
func ResultMax(local, remote string) string {
	return compareNumbers(local, remote, func(a, b int) bool { return a >= b })
}

// ResultChoose returns the first remote list entry also present in the
// local list, or Reject.
func ResultChoose(local, remote string) string {
	if v, ok := IntersectValues(SplitValues(remote), SplitValues(local)); ok {
		return v
	}
	return Reject
}

// ResultNone keeps the remote value. Used for declarative keys.
func ResultNone(_, remote string) string {
	return remote
}

func compareNumbers(local, remote string, keepLocal func(a, b int) bool) string {
	a, errA := ParseNumber(local)
	b, errB := ParseNumber(remote)
	switch {
	case errA != nil && errB != nil:
		return local
	case errA != nil:
		return remote
	case errB != nil:
		return local
	case keepLocal(a, b):
		return strconv.Itoa(a)
	default:
		return strconv.Itoa(b)
	}
}
