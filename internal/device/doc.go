// Package device manages the virtual terminal pair and its stable symlink.
//
// Each Device is one incarnation of a PTY pair: the simulator drives the
// controller side, clients open the peer side through a fixed symlink.
// A reboot destroys the current incarnation and allocates a fresh one,
// re-pointing the symlink; the symlink path is the only contract clients
// should depend on, since the raw peer path changes every reboot.
//
// Lifecycle:
//
//	mgr := device.NewManager(cfg.Serial.LinkPath, logger)
//	dev, err := mgr.Open()          // generation 1
//	dev, err = mgr.Reboot(dev)      // generation 2, boot banner written
//	mgr.Close(dev)                  // release + symlink removal on shutdown
//
// Allocation and symlink failures are fatal to the caller: without a
// terminal pair there is no service to provide.
package device
