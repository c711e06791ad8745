// Package model declares the record types shared by the gateway, the
// session coordinator, the instance store, and the reconciler.
//
// Names that look interchangeable in the original Python source (a
// "name" was sometimes a Kubernetes object name and sometimes a
// user-facing short label) are split into distinct types here:
// ShortName is what a user types after the dash in their login handle,
// FullName is what the cluster sees as an object name. Mixing the two up
// was the source of a prefix-stripping bug class in the prior
// implementation; the type system now catches it at compile time.
package model

import "fmt"

// ShortName is the user-visible name of a Template or Instance, e.g. "dev1".
type ShortName string

// FullName is the cluster-unique object name, e.g. "alice-dev1".
type FullName string

// Owner is a username, or the literal "system" for system-owned templates.
type Owner string

const SystemOwner Owner = "system"

// MakeFullName joins an owner and a short name the way every resource in
// this system derives its cluster name.
func MakeFullName(owner Owner, short ShortName) FullName {
	return FullName(fmt.Sprintf("%s-%s", owner, short))
}

// Resources mirrors the optional cpu/memory/gpu knobs a Template declares.
// Each field is a Kubernetes quantity string (e.g. "500m", "512Mi", "1"),
// left empty when unset.
type Resources struct {
	CPU    string
	Memory string
	GPU    string
}

// Template is a declarative blueprint for a sandbox container.
type Template struct {
	Name              ShortName
	FullName          FullName
	Owner             Owner
	Image             string
	Resources         Resources
	NodeSelector      map[string]string
	PersonalMountPath string
	Volumes           map[string]string // volume name -> mount path
	Description       string
	// Source is "system" or "user", used only for display/sort ordering
	// in listTemplates; it does not gate ownership, Owner does.
	Source string
}

// Instance is a declarative request for a running sandbox.
type Instance struct {
	Name         ShortName
	FullName     FullName
	Owner        Owner
	TemplateRef  FullName
	Preemptible  bool
	Status       InstanceStatus
	PodName      string
	PodIP        string
	Mounts       []VolumeMount
	ResourceVersion string
}

// InstanceStatus is the live phase of an instance's pod, as observed by
// InstanceStore; it is never stored in the Instance's own declaration.
type InstanceStatus string

const (
	StatusPending     InstanceStatus = "Pending"
	StatusRunning     InstanceStatus = "Running"
	StatusTerminating InstanceStatus = "Terminating"
	StatusStopped     InstanceStatus = "Stopped"
	StatusFailed      InstanceStatus = "Failed"
	StatusUnknown     InstanceStatus = "Unknown"
)

// VolumeMount describes one mount point observed on an instance's pod
// (its first container's mounts, minus /var/run/secrets paths).
type VolumeMount struct {
	Name      string
	MountPath string
}

// Selector is one entry of the (out-of-scope) selector catalog consumed
// by the menu UI; the core only round-trips it.
type Selector struct {
	Name   string
	Key    string
	Values []string
}

// Volume is one entry of the (out-of-scope) named-volume catalog.
type Volume struct {
	Name      string
	MountPath string
}

// User is an external record supplied by UserDirectory.
type User struct {
	Name       Owner
	PublicKeys [][]byte // pre-parsed SSH public key blobs (wire format)
}

// TargetKind dispatches a login handle to one of the three session modes.
type TargetKind int

const (
	TargetMenu TargetKind = iota
	TargetInstance
	TargetTemplate
)

// Target is the parsed intent of a login handle.
type Target struct {
	Kind TargetKind
	Name ShortName // empty for TargetMenu
}

// TerminalSize is a PTY's column/row dimensions.
type TerminalSize struct {
	Width  uint16
	Height uint16
}
