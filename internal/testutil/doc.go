// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include directory and file scaffolding (MustMkdirAll,
// MustWriteFile, NewCargoPackage), working directory changes (MustChdir),
// injectable environments (MapEnv, MapEnviron) and the container test
// semaphore (ContainerSemaphore).
package testutil
