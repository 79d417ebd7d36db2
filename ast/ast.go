// Package ast declares the borrowed-tree contracts the engine consumes.
//
// The engine never parses shell source and never implements word expansion
// or the symbol table itself — those live in a separate front end. This
// package only describes the shape that front end must hand the engine: a
// read-only node tree, a scoped variable store, an expander, an alias
// table, and the source-position bookkeeping traps and $LINENO need.
package ast

// NodeKind identifies the syntactic category of a Node.
type NodeKind int

const (
	// KindSimpleCommand is a single command with its argv and redirections.
	KindSimpleCommand NodeKind = iota
	// KindPipeline is a sequence of commands connected by "|" or "|&".
	KindPipeline
	// KindList is a sequence of pipelines separated by ";" or newline.
	KindList
	// KindAndOr is a pipeline list joined by "&&"/"||" short-circuit operators.
	KindAndOr
	// KindBraceGroup is a "{ list; }" group sharing the caller's process.
	KindBraceGroup
	// KindSubshell is a "( list )" group forked into a child process.
	KindSubshell
	// KindFor is a "for name in words; do list; done" loop.
	KindFor
	// KindWhile is a "while list; do list; done" loop.
	KindWhile
	// KindUntil is an "until list; do list; done" loop.
	KindUntil
	// KindSelect is a "select name in words; do list; done" menu loop.
	KindSelect
	// KindCase is a "case word in pattern) list;; esac" dispatch.
	KindCase
	// KindIf is an "if list; then list; elif list; then list; else list; fi".
	KindIf
	// KindFunctionDef is a function definition ("name() { list; }").
	KindFunctionDef
)

// String returns a human-readable name for the node kind.
func (k NodeKind) String() string {
	switch k {
	case KindSimpleCommand:
		return "simple command"
	case KindPipeline:
		return "pipeline"
	case KindList:
		return "list"
	case KindAndOr:
		return "and-or list"
	case KindBraceGroup:
		return "brace group"
	case KindSubshell:
		return "subshell"
	case KindFor:
		return "for"
	case KindWhile:
		return "while"
	case KindUntil:
		return "until"
	case KindSelect:
		return "select"
	case KindCase:
		return "case"
	case KindIf:
		return "if"
	case KindFunctionDef:
		return "function definition"
	default:
		return "unknown node"
	}
}

// Node is a read-only view over one node of the caller's parsed tree. The
// engine walks this tree to drive execution; it never mutates topology.
type Node interface {
	// Kind reports the node's syntactic category.
	Kind() NodeKind
	// Value returns the node's primary text: the command name for a simple
	// command, the loop variable for a for/select, the pattern word for a
	// case arm, and so on. Meaning is defined per Kind.
	Value() string
	// Args returns the argv words for a simple command. Empty for other
	// kinds.
	Args() []string
	// Children returns the node's structural sub-nodes (pipeline members,
	// list elements, loop bodies, if/elif/else branches).
	Children() []Node
	// Line reports the 1-based source line the node started on, for
	// $LINENO and trap/caller reporting.
	Line() int
}

// ExpandFlags controls which expansion passes Expander.Expand performs.
type ExpandFlags uint

const (
	// PathnameExpand performs filename generation ("glob") on the result.
	PathnameExpand ExpandFlags = 1 << iota
	// QuoteRemoval strips quoting characters left over from word splitting.
	QuoteRemoval
	// FieldSplit performs $IFS field splitting on the result.
	FieldSplit
	// StripAssign treats a leading "name=value" prefix as not part of the
	// word to expand (used for command-prefix assignments).
	StripAssign
	// ExpandAssign expands the value half of a "name=value" assignment word.
	ExpandAssign
)

// Expander performs word expansion: parameter/command/arithmetic
// substitution, tilde expansion, field splitting, and pathname expansion.
// The engine calls it to turn a raw word into the argv entries a command
// actually receives; it implements none of the expansion rules itself.
type Expander interface {
	// Expand expands word according to flags, returning zero or more
	// resulting fields (field splitting and pathname expansion can each
	// turn one word into several, or into none).
	Expand(word string, flags ExpandFlags) ([]string, error)
}

// SymbolTable is the scoped variable store. The engine reads and writes
// variables through this interface; it never holds variables itself.
type SymbolTable interface {
	// Get looks up name, searching from the innermost scope outward.
	Get(name string) (value string, ok bool)
	// Set assigns name := value in the current scope.
	Set(name, value string) error
	// Unset removes name from whichever scope currently holds it.
	Unset(name string) error
	// IsReadonly reports whether name is marked readonly.
	IsReadonly(name string) bool
	// IsExported reports whether name is marked for export to children.
	IsExported(name string) bool
	// SetExported marks name for export to child processes.
	SetExported(name string, exported bool) error
	// SetReadonly marks name readonly; further Set/Unset calls fail.
	SetReadonly(name string) error
	// PushLocalScope opens a new local scope, as on function entry.
	PushLocalScope()
	// PopLocalScope discards the innermost local scope, as on function
	// return.
	PopLocalScope()
	// MergeToGlobal flattens the innermost local scope into its parent
	// instead of discarding it.
	MergeToGlobal()
}

// AliasTable is consulted only at the documented extension points: the
// "shell" alias consulted by the script fallback, and the tcsh-style
// lifecycle aliases beepcmd/jobcmd/preexec/postcmd.
type AliasTable interface {
	// Lookup returns the expansion for name, if any alias is defined.
	Lookup(name string) (expansion string, ok bool)
}

// SourceContext describes the input the engine is currently executing:
// passed into every entry point and read back by traps, $LINENO, and the
// caller builtin.
type SourceContext interface {
	// Name identifies the source: a script path, "-" for stdin, or a
	// function name for a function body being executed.
	Name() string
	// Kind describes the source: "file", "stdin", "string" (eval/-c), or
	// "function".
	Kind() string
	// Line returns the current line number within the source.
	Line() int
}
