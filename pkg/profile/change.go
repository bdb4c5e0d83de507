package profile

// ChangeType identifies the kind of mutation reported by a change notification.
type ChangeType int

const (
	// ChangeName reports a change of the profile's Name.
	ChangeName ChangeType = iota
	// ChangeReadOnly reports the profile becoming read-only.
	ChangeReadOnly
	// ChangeSetValue reports an entry value being written.
	ChangeSetValue
	// ChangeRemoveEntry reports an entry being removed.
	ChangeRemoveEntry
	// ChangeRemoveSection reports a section being removed.
	ChangeRemoveSection
	// ChangeOther reports a backend specific change. The Entry of the
	// notification holds the name of the affected property or method.
	ChangeOther
)

var changeTypeNames = [...]string{
	ChangeName:          "Name",
	ChangeReadOnly:      "ReadOnly",
	ChangeSetValue:      "SetValue",
	ChangeRemoveEntry:   "RemoveEntry",
	ChangeRemoveSection: "RemoveSection",
	ChangeOther:         "Other",
}

func (c ChangeType) String() string {
	if c < 0 || int(c) >= len(changeTypeNames) {
		return "Unknown"
	}
	return changeTypeNames[c]
}

// ChangedArgs describes a change that has already been applied.
type ChangedArgs struct {
	changeType ChangeType
	section    string
	entry      string
	value      any
}

// NewChangedArgs builds the record passed to Changed handlers.
func NewChangedArgs(changeType ChangeType, section, entry string, value any) ChangedArgs {
	return ChangedArgs{changeType: changeType, section: section, entry: entry, value: value}
}

// ChangeType returns the kind of change.
func (a ChangedArgs) ChangeType() ChangeType { return a.changeType }

// Section returns the section involved, or "" if not applicable.
func (a ChangedArgs) Section() string { return a.section }

// Entry returns the entry involved, or "" if not applicable.
// For ChangeOther it is the name of the affected property or method.
func (a ChangedArgs) Entry() string { return a.entry }

// Value returns the new value, or nil if not applicable.
func (a ChangedArgs) Value() any { return a.value }

// ChangingArgs describes a change that is about to happen. Setting Cancel
// vetoes it; remaining Changing handlers are skipped.
type ChangingArgs struct {
	ChangedArgs
	Cancel bool
}

// ChangingHandler is invoked before a change is applied.
type ChangingHandler func(p *Profile, e *ChangingArgs) error

// ChangedHandler is invoked after a change has been applied.
type ChangedHandler func(p *Profile, e ChangedArgs) error
