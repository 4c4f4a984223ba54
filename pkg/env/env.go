// Package env declares the capability interfaces a caller running
// user scripts against the task pool supplies: a property-bag Env, a
// VM that constructs and inspects script Values, and a Handler that
// routes a topic to a VM-bound continuation. This package defines no
// concrete types — the core task/worker/file/timer machinery is
// agnostic to whatever scripting engine (V8, QuickJS, a bytecode
// interpreter) a consumer embeds, and only needs these shapes to hand
// work across that boundary.
package env

// Env is a property bag polymorphic over untyped values, keyed by a
// short string key.
type Env interface {
	// GetAttr returns the value stored under key, if any.
	GetAttr(key string) (value any, ok bool)

	// SetAttr stores value under key, returning whatever was
	// previously stored there.
	SetAttr(key string, value any) (previous any, hadPrevious bool)
}

// Value is a single script-level value a VM produces. The type-tag
// and accessor methods mirror a typical ES5-shaped embedding: a
// consumer's concrete Value wraps whatever representation its engine
// actually uses (a V8 Local<Value>, a QuickJS JSValue, a tagged
// union, ...).
type Value interface {
	TypeID() uint32

	IsUndefined() bool
	IsNull() bool
	IsBoolean() bool
	IsNumber() bool
	IsString() bool
	IsObject() bool
	IsArray() bool
	IsArrayBuffer() bool
	IsUint8Array() bool
	IsNativeObject() bool

	Bool() bool
	Int64() int64
	Uint64() uint64
	Float64() float64
	String() string

	// Field returns the value of the named field of an object Value.
	Field(key string) Value
	// ArrayLength returns the length of an array Value.
	ArrayLength() int
	// Index returns the element at i of an array Value.
	Index(i int) Value

	// Bytes returns the backing bytes of an ArrayBuffer/Uint8Array
	// Value.
	Bytes() []byte
	// SetBytes replaces the backing bytes of an ArrayBuffer/Uint8Array
	// Value.
	SetBytes(b []byte)

	// NativeObject returns the opaque handle backing a native-object
	// Value.
	NativeObject() uintptr
}

// VM constructs Values and wires them into objects and arrays. A
// Handler never holds a VM outside the lifetime of the thunk it was
// handed to — VMs are typically not safe to use off their owning
// thread.
type VM interface {
	Undefined() Value
	Null() Value
	Boolean(b bool) Value
	Int64(n int64) Value
	Uint64(n uint64) Value
	Float64(n float64) Value
	String(s string) Value

	Object() Value
	SetField(obj Value, key string, value Value) bool

	Array() Value
	SetIndex(arr Value, index int, value Value) bool

	ArrayBuffer(length int) Value
	Uint8Array(length int) Value
	NativeObject(instance uintptr) Value
}

// Handler routes a topic to a VM-bound continuation. thunk receives
// the VM and returns an opaque result identifier whose meaning is a
// convention between the caller and its embedded VM (a promise id, a
// callback registry slot, ...); this package does not interpret it.
type Handler interface {
	Handle(e Env, topic string, thunk func(vm VM) uintptr)
}

// WatchEvent describes a single filesystem change observed on a
// watched path.
type WatchEvent struct {
	Path string
	Op   WatchOp
}

// WatchOp enumerates the kinds of filesystem change a Watcher reports.
type WatchOp int

const (
	WatchWrite WatchOp = iota
	WatchCreate
	WatchRemove
	WatchRename
	WatchChmod
)

// Watcher is a pure capability interface for filesystem-change
// notification: a caller backs it with whatever notifier it embeds
// (e.g. fsnotify) and hands the result through a Handler the same way
// it would a script VM. This package ships no implementation — only
// the shape a concrete watcher must satisfy.
type Watcher interface {
	// Watch begins observing path, returning a cancel func that stops
	// the watch, or a non-nil error if the watch could not be
	// established.
	Watch(path string) (cancel func() error, err error)

	// Events returns the channel WatchEvents are delivered on for
	// every path currently being watched.
	Events() <-chan WatchEvent
}
