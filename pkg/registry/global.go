package registry

import "github.com/waypack/waypack/pkg/derrors"

// CompilerBackend describes one supported compiler frontend: the
// executable to invoke and how it spells common flags. The set of
// backends is closed and small (spec.md §9), so it lives in an explicit
// registry passed to the Project rather than as process-wide state.
type CompilerBackend struct {
	Name           string
	Executable     string
	ObjectFlag     string
	OutputFlag     string
	VersionFlag    string
	UnittestFlag   string
	DebugFlag      string
	ReleaseFlag    string
	WarnFlag       string
	WarnAsErrFlag  string
	InlineFlag     string
	OptimizeFlag   string
	CovFlag        string
	ProfileFlag    string
	StaticLibFlags []string
	SharedLibFlags []string
}

var compilers = New()

func init() {
	for _, c := range builtinCompilerBackends() {
		MustRegister(compilers, c.Name, c)
	}
}

func builtinCompilerBackends() []CompilerBackend {
	return []CompilerBackend{
		{
			Name: "dmd", Executable: "dmd",
			ObjectFlag: "-c", OutputFlag: "-of", VersionFlag: "-version=",
			UnittestFlag: "-unittest", DebugFlag: "-debug", ReleaseFlag: "-release",
			WarnFlag: "-wi", WarnAsErrFlag: "-w", InlineFlag: "-inline",
			OptimizeFlag: "-O", CovFlag: "-cov", ProfileFlag: "-profile",
			StaticLibFlags: []string{"-lib"}, SharedLibFlags: []string{"-shared"},
		},
		{
			Name: "ldc2", Executable: "ldc2",
			ObjectFlag: "-c", OutputFlag: "-of=", VersionFlag: "-d-version=",
			UnittestFlag: "-unittest", DebugFlag: "-d-debug", ReleaseFlag: "-release",
			WarnFlag: "-wi", WarnAsErrFlag: "-w", InlineFlag: "-enable-inlining",
			OptimizeFlag: "-O3", CovFlag: "-cov", ProfileFlag: "-fprofile-instr-generate",
			StaticLibFlags: []string{"-lib"}, SharedLibFlags: []string{"-shared"},
		},
		{
			Name: "gdc", Executable: "gdc",
			ObjectFlag: "-c", OutputFlag: "-o", VersionFlag: "-fversion=",
			UnittestFlag: "-funittest", DebugFlag: "-fdebug", ReleaseFlag: "-frelease",
			WarnFlag: "-Wall", WarnAsErrFlag: "-Werror", InlineFlag: "-finline-functions",
			OptimizeFlag: "-O2", CovFlag: "-fprofile-arcs", ProfileFlag: "-pg",
			StaticLibFlags: []string{"-static-libphobos"}, SharedLibFlags: []string{"-shared"},
		},
	}
}

// Compilers returns the process-wide compiler backend table. Callers
// that need isolation (tests registering a fake backend) should build
// their own table with New instead.
func Compilers() *backendTable {
	return compilers
}

// LookupCompiler resolves a compiler name to its backend, translating a
// registry miss into an UnknownVariable-shaped error a caller can
// surface directly (an unrecognized $DC/compiler name is effectively an
// unresolvable build variable).
func LookupCompiler(name string) (CompilerBackend, error) {
	c, err := compilers.Get(name)
	if err != nil {
		return CompilerBackend{}, derrors.Newf(derrors.UnknownVariable, "unknown compiler backend %q", name)
	}
	return c, nil
}
