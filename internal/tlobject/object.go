// Package tlobject implements the L0/L2 Object/Function sum type described
// in spec §3 ("Object / Function (TL objects)"): tagged algebraic values
// identified by a 32-bit constructor id, transported either as in-process
// typed objects or as JSON (§4.2, §6). It is the generic registry every
// feature handler (out of scope per spec §1) would plug concrete
// constructors into; this package itself ships only the small set of
// constructors the core's own contracts and seeded scenarios (§8) need:
// errors, updates, and the two demo request/response pairs spec.md's S1/S5
// scenarios exercise.
package tlobject

import "fmt"

// Object is any tagged TL value: requests, responses, and updates are all
// Objects. Function is the request-only subset.
type Object interface {
	// TypeName is the TL constructor name, e.g. "testSquareInt". JSON's
	// "@type" field carries this string (or, equivalently, ConstructorID
	// as a number) per spec §4.2 and §6.
	TypeName() string

	// ConstructorID is the 32-bit tag identifying this variant (spec §3).
	ConstructorID() uint32
}

// Function is the subset of Object usable as a request (spec §3:
// "Function is the request variant set").
type Function interface {
	Object
	isFunction()
}

// BaseFunction is embedded by concrete request types to satisfy Function.
type BaseFunction struct{}

func (BaseFunction) isFunction() {}

// Registry maps constructor names and ids to factories producing a fresh,
// zero-valued instance for JSON decoding, and is the "dispatch table
// mapping constructor id to handler closure" spec §9 calls for at the
// object level (feature handlers build their own dispatch on top of this
// for behavior; this registry only covers shape/decoding).
type Registry struct {
	byName map[string]func() Object
	idName map[uint32]string
	nameID map[string]uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]func() Object),
		idName: make(map[uint32]string),
		nameID: make(map[string]uint32),
	}
}

// Register adds a constructor. factory must return a new zero-valued
// instance of the type each call (used as a JSON unmarshal target).
func (r *Registry) Register(id uint32, name string, factory func() Object) {
	r.byName[name] = factory
	r.idName[id] = name
	r.nameID[name] = id
}

// ByName returns a fresh instance for the named constructor.
func (r *Registry) ByName(name string) (Object, bool) {
	f, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// ByID returns a fresh instance for the given constructor id.
func (r *Registry) ByID(id uint32) (Object, bool) {
	name, ok := r.idName[id]
	if !ok {
		return nil, false
	}
	return r.ByName(name)
}

// NameForID resolves a constructor id to its registered name.
func (r *Registry) NameForID(id uint32) (string, bool) {
	name, ok := r.idName[id]
	return name, ok
}

// IDForName resolves a constructor name to its registered id.
func (r *Registry) IDForName(name string) (uint32, bool) {
	id, ok := r.nameID[name]
	return id, ok
}

// Default is the process-wide registry the JSON bridge (§4.2) decodes
// against. Feature handlers outside this core's scope register their own
// constructors into it at init time.
var Default = NewRegistry()

func init() {
	registerCoreConstructors(Default)
}

func registerCoreConstructors(r *Registry) {
	r.Register(0xc4acb6d1, "error", func() Object { return &Error{} })
	r.Register(0x1d6e6b0f, "ok", func() Object { return &Ok{} })
	r.Register(0x2a3b4c5d, "close", func() Object { return &Close{} })
	r.Register(0x3e4f5a6b, "testSquareInt", func() Object { return &TestSquareInt{} })
	r.Register(0x4f5a6b7c, "testInt", func() Object { return &TestInt{} })
	r.Register(0x5a6b7c8d, "getTextEntities", func() Object { return &GetTextEntities{} })
	r.Register(0x6b7c8d9e, "textEntities", func() Object { return &TextEntities{} })
	r.Register(0x7c8d9eaf, "textEntity", func() Object { return &TextEntity{} })
	r.Register(0x8d9eafb0, "authorizationStateClosed", func() Object { return &AuthorizationStateClosed{} })
	r.Register(0x9eafb0c1, "authorizationStateWaitTdlibParameters", func() Object { return &AuthorizationStateWaitParameters{} })
	r.Register(0xafb0c1d2, "updateAuthorizationState", func() Object { return &UpdateAuthorizationState{} })
}

// Error is the user-visible failure shape (spec §7, "User-visible failure
// shape"): {"@type":"error","code":<int>,"message":<string>}.
type Error struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

func (*Error) TypeName() string      { return "error" }
func (*Error) ConstructorID() uint32 { return 0xc4acb6d1 }

// NewError builds an Error object from a code and formatted message.
func NewError(code int32, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Ok is the generic empty-success response (td_api::ok).
type Ok struct{}

func (*Ok) TypeName() string      { return "ok" }
func (*Ok) ConstructorID() uint32 { return 0x1d6e6b0f }

// Close is the request that begins graceful client shutdown (spec §3,
// "Client instances ... torn down by sending a close request").
type Close struct {
	BaseFunction
}

func (*Close) TypeName() string      { return "close" }
func (*Close) ConstructorID() uint32 { return 0x2a3b4c5d }

// TestSquareInt is the seeded S5 scenario's request: value -> value^2.
type TestSquareInt struct {
	BaseFunction
	Value int32 `json:"value"`
}

func (*TestSquareInt) TypeName() string      { return "testSquareInt" }
func (*TestSquareInt) ConstructorID() uint32 { return 0x3e4f5a6b }

// TestInt is TestSquareInt's response.
type TestInt struct {
	Value int32 `json:"value"`
}

func (*TestInt) TypeName() string      { return "testInt" }
func (*TestInt) ConstructorID() uint32 { return 0x4f5a6b7c }

// GetTextEntities is a member of the synchronous-execute subset (spec
// §4.2: "text-entity parsing"). Scenario S1 exercises it.
type GetTextEntities struct {
	BaseFunction
	Text string `json:"text"`
}

func (*GetTextEntities) TypeName() string      { return "getTextEntities" }
func (*GetTextEntities) ConstructorID() uint32 { return 0x5a6b7c8d }

// TextEntity describes one parsed entity span.
type TextEntity struct {
	Offset int32  `json:"offset"`
	Length int32  `json:"length"`
	Type   string `json:"type"`
}

func (*TextEntity) TypeName() string      { return "textEntity" }
func (*TextEntity) ConstructorID() uint32 { return 0x7c8d9eaf }

// TextEntities is GetTextEntities' response.
type TextEntities struct {
	Entities []TextEntity `json:"entities"`
}

func (*TextEntities) TypeName() string      { return "textEntities" }
func (*TextEntities) ConstructorID() uint32 { return 0x6b7c8d9e }

// AuthorizationStateClosed is the terminal authorization state update
// payload (spec §3, §8 S4: "an update updateAuthorizationState whose
// payload is authorizationStateClosed").
type AuthorizationStateClosed struct{}

func (*AuthorizationStateClosed) TypeName() string     { return "authorizationStateClosed" }
func (*AuthorizationStateClosed) ConstructorID() uint32 { return 0x8d9eafb0 }

// AuthorizationStateWaitParameters is the initial authorization state.
type AuthorizationStateWaitParameters struct{}

func (*AuthorizationStateWaitParameters) TypeName() string     { return "authorizationStateWaitTdlibParameters" }
func (*AuthorizationStateWaitParameters) ConstructorID() uint32 { return 0x9eafb0c1 }

// UpdateAuthorizationState wraps an authorization-state Object as an
// unsolicited update (request_id == 0, spec §4.2).
type UpdateAuthorizationState struct {
	AuthorizationState Object `json:"-"`
}

func (*UpdateAuthorizationState) TypeName() string      { return "updateAuthorizationState" }
func (*UpdateAuthorizationState) ConstructorID() uint32 { return 0xafb0c1d2 }

// MarshalJSON splices the nested authorization_state object's own @type in,
// since a bare json.Marshal of the Object interface field would otherwise
// lose it (see EncodeNested).
func (u *UpdateAuthorizationState) MarshalJSON() ([]byte, error) {
	nested, err := EncodeNested(u.AuthorizationState)
	if err != nil {
		return nil, err
	}
	return []byte(`{"authorization_state":` + string(nested) + `}`), nil
}
