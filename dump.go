package dspcore

// StateDumper receives a tree of named scalar/array/object entries for
// offline introspection. Implementations may render JSON, XML, or a diff
// report; dspcore never depends on a particular encoding.
type StateDumper interface {
	// Write records a single named scalar value.
	Write(name string, value any)

	// Writev records a named slice of values, e.g. filter state or a
	// gain envelope window.
	Writev(name string, values any)

	// BeginObject opens a named nested object; every call must be
	// matched by EndObject.
	BeginObject(name string)
	EndObject()

	// BeginArray opens a named nested array; every call must be matched
	// by EndArray.
	BeginArray(name string)
	EndArray()
}

// Dumper is implemented by every unit that supports state introspection.
type Dumper interface {
	Dump(v StateDumper)
}
