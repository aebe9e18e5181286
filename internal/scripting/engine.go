package scripting

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/citysim/worldcore/internal/world"
)

// Engine wraps one gopher-lua VM holding the procedural content scripts.
// Not safe for concurrent use: the Generator confines it to its worker.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a VM and loads every .lua file in scriptsDir in name
// order. A missing directory leaves the VM empty.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("hash01", vm.NewFunction(luaHash01))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// LoadString runs a chunk of Lua source. Used for inline scripts and tests.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Close() { e.vm.Close() }

// RegionContext is what generate_region receives.
type RegionContext struct {
	Coord      world.RegionCoord
	Generation uint32
	CellSize   float32
	Seed       uint32
}

// RegionSeed derives the per-region seed from the world seed. Stable across
// runs and platforms.
func RegionSeed(worldSeed int64, c world.RegionCoord) uint32 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(worldSeed))
	binary.LittleEndian.PutUint32(buf[8:], uint32(c.X))
	binary.LittleEndian.PutUint32(buf[12:], uint32(c.Z))
	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint32(sum[:4])
}

// GenerateRegion calls the Lua generate_region(ctx) function and converts
// the returned list into descriptors. Entries with an unknown category are
// skipped with a warning.
func (e *Engine) GenerateRegion(ctx RegionContext) ([]world.Descriptor, error) {
	fn := e.vm.GetGlobal("generate_region")
	if fn == lua.LNil {
		return nil, fmt.Errorf("lua function generate_region not found")
	}

	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(ctx.Coord.X))
	t.RawSetString("z", lua.LNumber(ctx.Coord.Z))
	t.RawSetString("generation", lua.LNumber(ctx.Generation))
	t.RawSetString("cell_size", lua.LNumber(ctx.CellSize))
	t.RawSetString("seed", lua.LNumber(ctx.Seed))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		return nil, fmt.Errorf("generate_region(%d,%d): %w", ctx.Coord.X, ctx.Coord.Z, err)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	if result == lua.LNil {
		return nil, nil
	}
	list, ok := result.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("generate_region(%d,%d) returned %s, want table", ctx.Coord.X, ctx.Coord.Z, result.Type())
	}

	out := make([]world.Descriptor, 0, list.Len())
	for i := 1; i <= list.Len(); i++ {
		entry, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		name := lua.LVAsString(entry.RawGetString("category"))
		cat, err := world.ParseCategory(name)
		if err != nil {
			e.log.Warn("generate_region: skipping entry",
				zap.Int32("x", ctx.Coord.X), zap.Int32("z", ctx.Coord.Z),
				zap.Int("index", i), zap.Error(err))
			continue
		}
		d := world.Descriptor{
			Category: cat,
			Position: mgl32.Vec3{
				float32(lua.LVAsNumber(entry.RawGetString("x"))),
				float32(lua.LVAsNumber(entry.RawGetString("y"))),
				float32(lua.LVAsNumber(entry.RawGetString("z"))),
			},
		}
		if params, ok := entry.RawGetString("params").(*lua.LTable); ok {
			d.Params = make(map[string]string)
			params.ForEach(func(k, v lua.LValue) {
				d.Params[lua.LVAsString(k)] = lua.LVAsString(v)
			})
		}
		out = append(out, d)
	}
	return out, nil
}

// luaHash01(seed, i) returns a deterministic number in [0, 1). Lua numbers
// are doubles, so scripts use this instead of integer LCG tricks.
func luaHash01(L *lua.LState) int {
	seed := uint64(L.CheckNumber(1))
	i := uint64(L.CheckNumber(2))
	v := mix64(seed*0x9e3779b97f4a7c15 ^ i)
	L.Push(lua.LNumber(float64(v>>11) / float64(uint64(1)<<53)))
	return 1
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
