/*
Package event provides a type-safe pub/sub event system for the streekeeper
daemon.

The event system decouples the supervisor from its observers: lifecycle
transitions, recovery prompts and configuration reloads are published here
and consumed by the SSE stream, the terminal prompter and tests without
direct dependencies.

# Architecture

The package is built on top of watermill's gochannel for infrastructure
while maintaining direct-call semantics to preserve type information. It
provides both synchronous and asynchronous publishing.

# Event Types

Server lifecycle:
  - server.starting: a launch attempt began (carries the resolved command)
  - server.running: handshake succeeded, server is live
  - server.stopped: server shut down (stop, restart or teardown)
  - server.failed: a launch attempt failed (carries the classification)

Recovery prompts:
  - prompt.pending: a recovery prompt awaits an operator choice
  - prompt.resolved: the prompt was answered or dismissed

Configuration:
  - config.reloaded: configuration files changed and were re-read

Remediation:
  - install.started / install.finished: the install command ran

# Basic Usage

Publishing:

	event.Publish(event.Event{
		Type: event.ServerRunning,
		Data: event.ServerRunningData{LaunchID: id, PID: pid},
	})

	// Synchronous publishing blocks until all subscribers return
	event.PublishSync(event.Event{Type: event.ConfigReloaded})

Subscribing:

	unsubscribe := event.Subscribe(event.ServerFailed, func(e event.Event) {
		data := e.Data.(event.ServerFailedData)
		logging.Warn().Str("kind", data.Kind).Msg("launch failed")
	})
	defer unsubscribe()

# Subscriber Safety

With PublishSync, subscribers run in the publisher's goroutine. They must
complete quickly, use non-blocking channel sends, and never publish
re-entrantly or acquire locks the publisher might hold.

# Custom Event Bus

For testing or isolation:

	bus := event.NewBus()
	defer bus.Close()

The global bus can be reset in test cleanup with event.Reset().

# Integration with Watermill

The underlying gochannel is reachable via event.PubSub() for middleware or
a future switch to a distributed broker.
*/
package event
