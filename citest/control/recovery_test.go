package control_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streekit/streekeeper/citest/testutil"
	"github.com/streekit/streekeeper/internal/control"
	"github.com/streekit/streekeeper/pkg/types"
)

var _ = Describe("Failure recovery", func() {
	var (
		daemon *testutil.TestDaemon
		client *control.Client
		ctx    context.Context
	)

	AfterEach(func() {
		if daemon != nil {
			daemon.Stop()
		}
	})

	startDaemon := func(scenario *testutil.Scenario) {
		var err error
		daemon, err = testutil.StartTestDaemon(testutil.WithScenario(scenario))
		Expect(err).NotTo(HaveOccurred(), "Failed to start test daemon")

		client = daemon.Client()
		ctx = context.Background()
	}

	pendingPrompt := func() types.PromptInfo {
		var pending []types.PromptInfo
		Eventually(func() ([]types.PromptInfo, error) {
			var err error
			pending, err = client.Prompts(ctx)
			return pending, err
		}, 5*time.Second, 50*time.Millisecond).Should(HaveLen(1))
		return pending[0]
	}

	Context("when the executable is missing", func() {
		BeforeEach(func() {
			scenario := testutil.DefaultScenario()
			scenario.Launches = []testutil.LaunchRule{{Name: "missing stree", NotFound: true}}
			startDaemon(scenario)
		})

		It("fails the start and offers install or restart", func() {
			_, err := client.StartServer(ctx)
			var apiErr *control.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusInternalServerError))

			p := pendingPrompt()
			Expect(p.Message).To(ContainSubstring("could not be found"))
			Expect(p.Actions).To(Equal([]string{"Install Gem", "Restart"}))
			Expect(p.LaunchID).NotTo(BeEmpty())
		})

		It("recovers when the operator answers Restart", func() {
			_, _ = client.StartServer(ctx)
			p := pendingPrompt()

			Expect(client.ResolvePrompt(ctx, p.ID, "Restart")).To(Succeed())

			Eventually(func() (string, error) {
				st, err := client.Status(ctx)
				if err != nil {
					return "", err
				}
				return st.State, nil
			}, 5*time.Second, 50*time.Millisecond).Should(Equal("running"))
			Expect(daemon.Launcher.Attempts()).To(Equal(2))
			Expect(daemon.Installer.Calls()).To(BeZero())
		})

		It("installs the gem before retrying when asked", func() {
			_, _ = client.StartServer(ctx)
			p := pendingPrompt()

			Expect(client.ResolvePrompt(ctx, p.ID, "Install Gem")).To(Succeed())

			Eventually(func() (string, error) {
				st, err := client.Status(ctx)
				if err != nil {
					return "", err
				}
				return st.State, nil
			}, 5*time.Second, 50*time.Millisecond).Should(Equal("running"))
			Expect(daemon.Installer.Calls()).To(Equal(1))
		})

		It("stays idle when the prompt is dismissed", func() {
			_, _ = client.StartServer(ctx)
			p := pendingPrompt()

			Expect(client.ResolvePrompt(ctx, p.ID, "")).To(Succeed())

			Consistently(func() (string, error) {
				st, err := client.Status(ctx)
				if err != nil {
					return "", err
				}
				return st.State, nil
			}, 500*time.Millisecond, 50*time.Millisecond).Should(Equal("idle"))
			Expect(daemon.Launcher.Attempts()).To(Equal(1))
		})

		It("rejects unknown actions", func() {
			_, _ = client.StartServer(ctx)
			p := pendingPrompt()

			err := client.ResolvePrompt(ctx, p.ID, "Reinstall OS")
			var apiErr *control.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))

			// The prompt survives a bad answer.
			pending, err := client.Prompts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
		})

		It("404s for prompts that do not exist", func() {
			err := client.ResolvePrompt(ctx, "no-such-prompt", "Restart")
			var apiErr *control.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Context("when a spawn fails for another reason", func() {
		BeforeEach(func() {
			scenario := testutil.DefaultScenario()
			scenario.Launches = []testutil.LaunchRule{{Name: "broken gemset", Fail: "handshake timed out"}}
			startDaemon(scenario)
		})

		It("offers restart only", func() {
			_, err := client.StartServer(ctx)
			Expect(err).To(HaveOccurred())

			p := pendingPrompt()
			Expect(p.Message).To(ContainSubstring("failed to start"))
			Expect(p.Actions).To(Equal([]string{"Restart"}))
		})
	})

	Context("when a running server crashes", func() {
		BeforeEach(func() {
			startDaemon(testutil.DefaultScenario())
		})

		It("returns to idle without prompting and can start again", func() {
			_, err := client.StartServer(ctx)
			Expect(err).NotTo(HaveOccurred())

			daemon.Launcher.LastServer().Exit(errors.New("segfault"))

			Eventually(func() (string, error) {
				st, err := client.Status(ctx)
				if err != nil {
					return "", err
				}
				return st.State, nil
			}, 5*time.Second, 50*time.Millisecond).Should(Equal("idle"))

			pending, err := client.Prompts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())

			st, err := client.StartServer(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.State).To(Equal("running"))
			Expect(daemon.Launcher.Attempts()).To(Equal(2))
		})
	})
})
