package control_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streekit/streekeeper/citest/testutil"
	"github.com/streekit/streekeeper/internal/control"
)

// eventRecorder collects streamed events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []control.Event
}

func (r *eventRecorder) record(e control.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Type
	}
	return names
}

func (r *eventRecorder) find(eventType string) (control.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == eventType {
			return e, true
		}
	}
	return control.Event{}, false
}

var _ = Describe("Event stream", func() {
	var (
		daemon   *testutil.TestDaemon
		client   *control.Client
		ctx      context.Context
		cancel   context.CancelFunc
		recorder *eventRecorder
		done     chan error
	)

	// attach starts a daemon for the scenario and follows its event
	// stream until the test ends.
	attach := func(scenario *testutil.Scenario) {
		var err error
		daemon, err = testutil.StartTestDaemon(testutil.WithScenario(scenario))
		Expect(err).NotTo(HaveOccurred(), "Failed to start test daemon")

		client = daemon.Client()
		ctx, cancel = context.WithCancel(context.Background())

		recorder = &eventRecorder{}
		done = make(chan error, 1)
		go func() {
			done <- client.FollowEvents(ctx, recorder.record)
		}()

		// The opening frame confirms the stream is attached before any
		// lifecycle activity happens.
		Eventually(recorder.types, 5*time.Second, 20*time.Millisecond).
			Should(ContainElement("stream.connected"))
	}

	AfterEach(func() {
		if cancel != nil {
			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			cancel = nil
		}
		if daemon != nil {
			daemon.Stop()
			daemon = nil
		}
	})

	Context("with a healthy launcher", func() {
		BeforeEach(func() {
			scenario := testutil.DefaultScenario()
			scenario.Launches = []testutil.LaunchRule{{PID: 7331}}
			attach(scenario)
		})

		It("opens with the current status", func() {
			Expect(recorder.types()[0]).To(Equal("stream.connected"))

			connected, ok := recorder.find("stream.connected")
			Expect(ok).To(BeTrue())

			var status struct {
				State string `json:"state"`
			}
			Expect(json.Unmarshal(connected.Data, &status)).To(Succeed())
			Expect(status.State).To(Equal("idle"))
		})

		It("streams lifecycle events", func() {
			_, err := client.StartServer(ctx)
			Expect(err).NotTo(HaveOccurred())

			Eventually(recorder.types, 5*time.Second, 20*time.Millisecond).
				Should(ContainElements("server.starting", "server.running"))

			running, ok := recorder.find("server.running")
			Expect(ok).To(BeTrue())

			var data struct {
				PID int `json:"pid"`
			}
			Expect(json.Unmarshal(running.Data, &data)).To(Succeed())
			Expect(data.PID).To(Equal(7331))

			_, err = client.StopServer(ctx)
			Expect(err).NotTo(HaveOccurred())

			Eventually(recorder.types, 5*time.Second, 20*time.Millisecond).
				Should(ContainElement("server.stopped"))
		})
	})

	Context("with a failing launcher", func() {
		BeforeEach(func() {
			scenario := testutil.DefaultScenario()
			scenario.Launches = []testutil.LaunchRule{{NotFound: true}}
			attach(scenario)
		})

		It("streams prompt and resolution events", func() {
			_, _ = client.StartServer(ctx)

			Eventually(recorder.types, 5*time.Second, 20*time.Millisecond).
				Should(ContainElements("server.failed", "prompt.pending"))

			failed, ok := recorder.find("server.failed")
			Expect(ok).To(BeTrue())

			var failure struct {
				Kind string `json:"kind"`
			}
			Expect(json.Unmarshal(failed.Data, &failure)).To(Succeed())
			Expect(failure.Kind).To(Equal("not-found"))

			pending, ok := recorder.find("prompt.pending")
			Expect(ok).To(BeTrue())

			var promptData struct {
				Prompt struct {
					ID      string   `json:"id"`
					Actions []string `json:"actions"`
				} `json:"prompt"`
			}
			Expect(json.Unmarshal(pending.Data, &promptData)).To(Succeed())
			Expect(promptData.Prompt.Actions).To(Equal([]string{"Install Gem", "Restart"}))

			Expect(client.ResolvePrompt(ctx, promptData.Prompt.ID, "")).To(Succeed())
			Eventually(recorder.types, 5*time.Second, 20*time.Millisecond).
				Should(ContainElement("prompt.resolved"))
		})
	})
})
