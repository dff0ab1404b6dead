package cosmwasm_test

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	cosmwasm "github.com/CosmWasm/wasmsandbox"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/db"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin/wasmtest"
	"github.com/CosmWasm/wasmsandbox/types"
)

func Example() {
	ctx := context.Background()

	i32 := []wasmbin.ValueType{wasmtest.I32}
	b := wasmtest.ContractBase(wasmtest.New())
	b.ExportFunc("query", b.Func(b.Type(i32, i32), wasmtest.LocalGet(0)...))
	code := b.Build()

	vm, err := cosmwasm.NewVM(types.DefaultConfig(), zerolog.Nop())
	if err != nil {
		panic(err)
	}
	defer vm.Close(ctx)

	module, err := vm.Compile(ctx, code)
	if err != nil {
		panic(err)
	}
	backend := types.Backend{API: db.MockAPI{}, Storage: db.NewMemStorage(), Querier: db.NewMockQuerier()}
	instance, err := vm.Instantiate(ctx, module, backend, cosmwasm.InstanceOptions{GasLimit: 1_000_000_000})
	if err != nil {
		panic(err)
	}
	defer instance.Close(ctx)

	res, err := instance.Call(ctx, "query", true, []byte(`{"balance":{}}`))
	if err != nil {
		panic(err)
	}
	fmt.Println(string(res))
	// Output: {"balance":{}}
}

func ExampleVM_StaticCheck() {
	vm, err := cosmwasm.NewVM(types.DefaultConfig(), zerolog.Nop())
	if err != nil {
		panic(err)
	}
	defer vm.Close(context.Background())

	fmt.Println(vm.StaticCheck(wasmtest.Contract()))
	fmt.Println(vm.StaticCheck([]byte("\x00asm\x01\x00\x00\x00")))
	// Output:
	// <nil>
	// Error during static Wasm validation: Wasm contract must contain exactly one memory
}
