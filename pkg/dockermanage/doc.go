// Package dockermanage is the container runtime boundary used by pgfixture.
//
// A [Manager] wraps the native Docker client and exposes the few operations a disposable test
// database needs: start a container in detached mode, force-remove it, and list or prune the
// containers this package created. Containers are configured through functional [Option] values
// such as [WithImage], [WithContainerPortTCP], [WithHostPort] and [WithEnv].
//
// Every container created through this package carries the [ManagedLabelKey] label, which lets
// [Manager.ListManaged] and [Manager.RemoveManaged] find containers left behind by an aborted
// test run.
package dockermanage
