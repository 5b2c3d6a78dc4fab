// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"testing"
)

// ContainerParallelEnv caps how many tests may drive a real container
// engine at once. The default is min(GOMAXPROCS, 2).
const ContainerParallelEnv = "DEV_TEST_CONTAINER_PARALLEL"

var containerSlots = sync.OnceValue(func() chan struct{} {
	return make(chan struct{}, containerParallelism())
})

func containerParallelism() int {
	n := min(runtime.GOMAXPROCS(0), 2)
	if v, err := strconv.Atoi(os.Getenv(ContainerParallelEnv)); err == nil && v > 0 {
		n = v
	}
	return n
}

// AcquireContainerSlot blocks until a container slot is free and releases
// it when t finishes.
func AcquireContainerSlot(t testing.TB) {
	t.Helper()
	slots := containerSlots()
	slots <- struct{}{}
	t.Cleanup(func() { <-slots })
}
