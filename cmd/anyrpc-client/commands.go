/*
Copyright (c) The anyrpc Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anyrpc-go/anyrpc/client"
	"github.com/anyrpc-go/anyrpc/value"
)

func init() {
	RootCmd.AddCommand(callCmd, notifyCmd, demoCmd)
}

var callCmd = &cobra.Command{
	Use:   "call <method> [params...]",
	Short: "Call a method and print its result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ConfigureVerbosity()
		addr, codec, transport, err := resolveConnection()
		if err != nil {
			return err
		}
		rc, err := dialClient(addr, codec, transport)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()
		result, err := rc.Call(ctx, args[0], parseParams(args[1:]))
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Println(result.String())
		return nil
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <method> [params...]",
	Short: "Send a fire-and-forget notification (JSON-RPC or MessagePack-RPC only)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ConfigureVerbosity()
		addr, codec, transport, err := resolveConnection()
		if err != nil {
			return err
		}
		rc, err := dialClient(addr, codec, transport)
		if err != nil {
			return err
		}
		n, ok := rc.(notifier)
		if !ok {
			return fmt.Errorf("anyrpc-client: codec %q has no notification form", codec)
		}
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()
		return n.Notify(ctx, args[0], parseParams(args[1:]))
	},
}

// demoCmd reproduces exampleClient.cpp's TestClient sequence: add,
// subtract, multiply, a deliberately-failing divide, a five-call
// Post/GetPostResult batch, a multiply notification, and a delayed
// wait call.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the add/subtract/multiply/divide/post/notify/wait walkthrough",
	RunE: func(cmd *cobra.Command, args []string) error {
		ConfigureVerbosity()
		addr, codec, transport, err := resolveConnection()
		if err != nil {
			return err
		}
		rc, err := dialClient(addr, codec, transport)
		if err != nil {
			return err
		}
		return runDemo(rc, codec)
	},
}

func runDemo(rc rpcClient, codec string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	params := value.Array(value.Int(5), value.Int(6))
	result, err := rc.Call(ctx, "add", params)
	fmt.Printf("success: %v, add:      %v\n", err == nil, result.String())

	result, err = rc.Call(ctx, "subtract", params)
	fmt.Printf("success: %v, subtract: %v\n", err == nil, result.String())

	result, err = rc.Call(ctx, "multiply", params)
	fmt.Printf("success: %v, multiply: %v\n", err == nil, result.String())

	// divide is never registered; this call is expected to fail.
	result, err = rc.Call(ctx, "divide", params)
	fmt.Printf("success: %v, divide:   %v\n", err == nil, result.String())

	for i := 0; i < 5; i++ {
		if _, err := rc.Post(ctx, "add", value.Array(value.Int(int64(i)), value.Int(12))); err != nil {
			return fmt.Errorf("post %d: %w", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		id, result, err := rc.GetPostResult(ctx)
		fmt.Printf("success: %v, add[%d]:   %v\n", err == nil, id, result.String())
	}

	if n, ok := rc.(notifier); ok {
		err := n.Notify(ctx, "multiply", value.Array(value.Int(10), value.Int(12)))
		fmt.Printf("Notify: success: %v, multiply\n", err == nil)
	} else {
		log.Infof("anyrpc-client: codec %q has no notification form, skipping Notify", codec)
	}

	result, err = rc.Call(ctx, "wait", value.Array(value.Int(1000)))
	fmt.Printf("success: %v, wait:     %v\n", err == nil, result.String())
	return nil
}
