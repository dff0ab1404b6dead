package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/constants"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin/wasmtest"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	good := writeFile(t, "good.wasm", wasmtest.Contract())
	bad := writeFile(t, "bad.wasm", []byte("garbage"))

	out, err := run(t, "check", good)
	require.NoError(t, err)
	assert.Contains(t, out, good+": ok")

	out, err = run(t, "check", good, bad)
	assert.EqualError(t, err, "1 of 2 modules rejected")
	assert.Contains(t, out, bad+": FAIL Error during static Wasm validation")
}

func TestCompile(t *testing.T) {
	path := writeFile(t, "contract.wasm", wasmtest.Contract())

	out, err := run(t, "compile", path)
	require.NoError(t, err)
	assert.Contains(t, out, "checksum: ")
	assert.Contains(t, out, "required capabilities: []")
}

func TestConfigFile(t *testing.T) {
	contract := writeFile(t, "contract.wasm", wasmtest.Contract())
	config := writeFile(t, "config.yaml", []byte("wasm_limits:\n  max_functions: 1\n"))

	out, err := run(t, "--config", config, "check", contract)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "check", contract)
	assert.ErrorContains(t, err, "failed to read config")

	_, err = run(t, "--log-level", "loud", "check", contract)
	assert.ErrorContains(t, err, "invalid log level")
}

var i32 = []wasmbin.ValueType{wasmtest.I32}

// storeContract writes msg under key msg and answers with msg.
func storeContract() []byte {
	b := wasmtest.New()
	dbWrite := b.ImportFunc(constants.EnvModule, constants.DBWrite, b.Type([]wasmbin.ValueType{wasmtest.I32, wasmtest.I32}, nil))
	wasmtest.ContractBase(b)
	code := wasmtest.Cat(wasmtest.LocalGet(0), wasmtest.LocalGet(0), wasmtest.Call(dbWrite), wasmtest.LocalGet(0))
	b.ExportFunc("execute", b.Func(b.Type(i32, i32), code...))
	return b.Build()
}

func TestRun(t *testing.T) {
	path := writeFile(t, "store.wasm", storeContract())

	out, err := run(t, "run", path, "execute", "hello")
	assert.ErrorContains(t, err, "Must not call a writing storage function")
	assert.Contains(t, out, "gas: limit 500000000000")

	out, err = run(t, "run", "--write", path, "execute", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "used externally 10")
	assert.Contains(t, out, "result: hello")

	_, err = run(t, "run", "--gas-limit", "1000", path, "execute", "hello")
	assert.ErrorContains(t, err, "Ran out of gas")

	_, err = run(t, "run", path, "missing")
	assert.Error(t, err)
}

func TestRunPersistsToDBDir(t *testing.T) {
	path := writeFile(t, "store.wasm", storeContract())
	dir := t.TempDir()

	_, err := run(t, "run", "--write", "--db-dir", dir, path, "execute", "persisted")
	require.NoError(t, err)

	store, err := dbm.NewDB("contract", dbm.GoLevelDBBackend, dir)
	require.NoError(t, err)
	defer store.Close()
	value, err := store.Get([]byte("persisted"))
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), value)
}
