package metrics

import "fmt"

// Tag formats a DataDog tag as "key:value".
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

func StoreTag(store string) string {
	return Tag("store", store)
}

func OperationTag(op string) string {
	return Tag("operation", op)
}

// StatusTag is one of hit, miss or error.
func StatusTag(status string) string {
	return Tag("status", status)
}

// ErrorKindTag classifies an error as connection, serialization or other.
func ErrorKindTag(kind string) string {
	return Tag("error_kind", kind)
}

func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}
