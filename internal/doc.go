// Package internal contains the core implementation packages for devloop.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - build: Build pipeline running npm, cargo, wasm-bindgen, rspack and node-sass
//   - server: Static file server bound to the first free port of a range
//   - browser: Selenium WebDriver session with one reconnect per reload
//   - watcher: Recursive fsnotify watch that returns on the first change
//   - supervisor: The build, serve, reload and watch cycle
//   - config: Viper-backed configuration with validation
//   - errors: Typed build, port and browser failures
//   - logging, notify, monitoring: Structured logs, terminal notices, Prometheus metrics
//
// # Inter-Package Communication
//
// The supervisor owns the loop and talks to the other components through
// small interfaces, so each of them can be replaced by a fake in tests:
//
//   - Builder produces the directory to serve
//   - Binder starts a server for that directory and returns a handle
//   - Browser points the remote page at the handle's URL
//   - Watcher blocks until something under the watch roots changes
//
// # Security Considerations
//
//   - Build steps only run allowlisted programs with validated arguments
//   - Configured paths must stay inside the project root
//   - The browser is only navigated to http and https URLs
package internal
