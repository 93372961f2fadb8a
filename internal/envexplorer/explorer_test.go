package envexplorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/errs"
)

type fakeIndex struct {
	known map[string]bool
	calls int
}

func (f *fakeIndex) Exists(ctx context.Context, path, version string) (bool, error) {
	f.calls++
	return f.known[path+"@"+version], nil
}

func TestExplore_Classification(t *testing.T) {
	idx := &fakeIndex{known: map[string]bool{"github.com/google/uuid@v1.6.0": true}}
	e := New(WithIndex(idx))

	pkgs := []GoPackage{
		{ImportPath: "fmt", Standard: true},
		{ImportPath: "example.com/app", Dir: "/src/app", Module: &GoModule{Path: "example.com/app", Main: true}},
		{ImportPath: "example.com/app/util", Dir: "/src/app/util", Module: &GoModule{Path: "example.com/app", Main: true}},
		{ImportPath: "github.com/google/uuid", Dir: "/mod/uuid", Module: &GoModule{Path: "github.com/google/uuid", Version: "v1.6.0"}},
		{ImportPath: "example.com/private/x", Dir: "/mod/private/x", Module: &GoModule{Path: "example.com/private", Version: "v0.1.0"}},
		{ImportPath: "example.com/private/y", Dir: "/mod/private/y", Module: &GoModule{Path: "example.com/private", Version: "v0.1.0"}},
		{
			ImportPath: "example.com/dev",
			Dir:        "/work/dev",
			Module:     &GoModule{Path: "example.com/dev", Version: "v1.0.0", Replace: &GoModule{Path: "../dev"}},
		},
		{
			ImportPath: "example.com/native",
			Dir:        "/mod/native",
			CgoFiles:   []string{"native.go"},
			Module:     &GoModule{Path: "example.com/native", Dir: "/mod/native", Version: "v0.2.0"},
		},
	}

	m, err := e.Explore(context.Background(), pkgs)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"example.com/app", "example.com/dev", "example.com/native", "example.com/private", "github.com/google/uuid",
	}, m.Names())

	assert.Equal(t, []string{"/src/app", "/src/app/util"}, m.Packages["example.com/app"].Paths)
	assert.Equal(t, Package{Version: "v1.6.0"}, m.Packages["github.com/google/uuid"])
	assert.Equal(t, []string{"/mod/private/x", "/mod/private/y"}, m.Packages["example.com/private"].Paths)
	assert.True(t, m.Packages["example.com/dev"].Local())
	assert.True(t, m.Packages["example.com/native"].Binary)
	assert.Equal(t, 3, idx.calls, "each module version is looked up once; replaced modules are not looked up")
}

func TestExplore_MissingDirectory(t *testing.T) {
	e := New(WithIndex(&fakeIndex{}))
	_, err := e.Explore(context.Background(), []GoPackage{
		{ImportPath: "example.com/app/ghost", Module: &GoModule{Path: "example.com/app", Main: true}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrDependencyResolution)

	var dre *errs.DependencyResolutionError
	require.ErrorAs(t, err, &dre)
	assert.Equal(t, []string{"example.com/app/ghost"}, dre.Modules)
}

func TestExplore_BinaryOnOtherPlatform(t *testing.T) {
	other := "plan9"
	if runtime.GOOS == other {
		other = "linux"
	}
	e := New(WithIndex(&fakeIndex{}), WithTarget(other, runtime.GOARCH))
	_, err := e.Explore(context.Background(), []GoPackage{
		{ImportPath: "example.com/native", Dir: "/n", SysoFiles: []string{"rsrc.syso"}, Module: &GoModule{Path: "example.com/native", Version: "v1.0.0"}},
		{ImportPath: "example.com/pure", Dir: "/p", Module: &GoModule{Path: "example.com/pure", Version: "v1.0.0"}},
	})
	var dre *errs.DependencyResolutionError
	require.ErrorAs(t, err, &dre)
	assert.Equal(t, []string{"example.com/native"}, dre.Modules)
}

func TestProxyIndex_Exists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/github.com/!burnt!sushi/toml/@v/v1.3.2.info":
			_, _ = w.Write([]byte(`{"Version":"v1.3.2"}`))
		case "/broken.example/@v/v1.0.0.info":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	idx := NewProxyIndex(srv.URL + "/")
	ctx := context.Background()

	ok, err := idx.Exists(ctx, "github.com/BurntSushi/toml", "v1.3.2")
	require.NoError(t, err)
	assert.True(t, ok, "upper-case path elements are escaped")

	ok, err = idx.Exists(ctx, "github.com/BurntSushi/toml", "v9.9.9")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = idx.Exists(ctx, "broken.example", "v1.0.0")
	assert.Error(t, err)
}

func TestParseGoList(t *testing.T) {
	out := `{"ImportPath":"fmt","Standard":true}
{"ImportPath":"example.com/app","Dir":"/src/app","Module":{"Path":"example.com/app","Main":true}}
`
	pkgs, err := ParseGoList(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.True(t, pkgs[0].Standard)
	assert.True(t, pkgs[1].Module.Main)

	_, err = ParseGoList(strings.NewReader(`{"ImportPath":`))
	assert.Error(t, err)
}

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "example.com/app"},
		Deps: []*debug.Module{
			{Path: "github.com/google/uuid", Version: "v1.6.0"},
			{Path: "example.com/dev", Version: "v1.0.0", Replace: &debug.Module{Path: "../dev"}},
		},
	}
	pkgs := FromBuildInfo(bi, "/src/app")
	require.Len(t, pkgs, 3)

	e := New(WithIndex(&fakeIndex{known: map[string]bool{"github.com/google/uuid@v1.6.0": true}}))
	m, err := e.Explore(context.Background(), pkgs)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/app"}, m.Packages["example.com/app"].Paths)
	assert.Equal(t, []string{"../dev"}, m.Packages["example.com/dev"].Paths)
	assert.Equal(t, "v1.6.0", m.Packages["github.com/google/uuid"].Version)
}

func TestManifest_RoundTrip(t *testing.T) {
	m := &Manifest{Packages: map[string]Package{
		"github.com/google/uuid": {Version: "v1.6.0"},
		"example.com/app":        {Paths: []string{"/src/app"}, Binary: true},
	}}
	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(b), "packages:")

	back, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestManifest_AddPathDeduplicates(t *testing.T) {
	m := &Manifest{Packages: map[string]Package{}}
	m.addPath("example.com/app", "/src/app/b", false)
	m.addPath("example.com/app", "/src/app/a", false)
	m.addPath("example.com/app", "/src/app/b", true)

	p := m.Packages["example.com/app"]
	assert.Equal(t, []string{"/src/app/a", "/src/app/b"}, p.Paths)
	assert.True(t, p.Binary)
	assert.True(t, p.Local())
}
