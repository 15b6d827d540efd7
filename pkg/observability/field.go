package observability

type Field struct {
	Key   string
	Value any
}

func String(k, v string) Field {
	return Field{Key: k, Value: v}
}

func Int(k string, v int) Field {
	return Field{Key: k, Value: v}
}

func Int64(k string, v int64) Field {
	return Field{Key: k, Value: v}
}

func Bool(k string, v bool) Field {
	return Field{Key: k, Value: v}
}

func Any(k string, v any) Field {
	return Field{Key: k, Value: v}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
