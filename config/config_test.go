package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sanasaryank/courier"
	"github.com/sanasaryank/courier/config"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "courier-config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
		os.Unsetenv("COURIER_RETRY_MAX_ATTEMPTS")
	})

	writeConfig := func(content string) {
		path := filepath.Join(tempDir, "courier.yaml")
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	}

	Describe("LoadFrom", func() {
		Context("with no config file", func() {
			It("falls back to defaults", func() {
				cfg, err := config.LoadFrom(tempDir)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Retry.MaxAttempts).To(Equal(3))
				Expect(cfg.Retry.PerAttemptTimeout).To(Equal("30s"))
				Expect(cfg.Retry.BackoffBase).To(Equal("1s"))
				Expect(cfg.Retry.MaxBackoff).To(Equal("10s"))
				Expect(cfg.CircuitBreaker.FailureThreshold).To(Equal(5))
				Expect(cfg.CircuitBreaker.ResetTimeout).To(Equal("60s"))
				Expect(cfg.Logging.Debug).To(BeFalse())
			})
		})

		Context("with a valid config file", func() {
			BeforeEach(func() {
				writeConfig(`
retry:
  max_attempts: 5
  per_attempt_timeout: "5s"
  backoff_base: "500ms"
  max_backoff: "8s"
  jitter: 0.2

circuit_breaker:
  failure_threshold: 3
  reset_timeout: "30s"

logging:
  debug: false
`)
			})

			It("loads values from the file", func() {
				cfg, err := config.LoadFrom(tempDir)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Retry.MaxAttempts).To(Equal(5))
				Expect(cfg.Retry.PerAttemptTimeout).To(Equal("5s"))
				Expect(cfg.Retry.BackoffBase).To(Equal("500ms"))
				Expect(cfg.Retry.Jitter).To(BeNumerically("~", 0.2))
				Expect(cfg.CircuitBreaker.FailureThreshold).To(Equal(3))
			})
		})

		Context("with an environment override", func() {
			It("prefers the environment over defaults", func() {
				os.Setenv("COURIER_RETRY_MAX_ATTEMPTS", "7")

				cfg, err := config.LoadFrom(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Retry.MaxAttempts).To(Equal(7))
			})
		})

		Context("with invalid values", func() {
			It("rejects a non-duration timeout", func() {
				writeConfig(`
retry:
  per_attempt_timeout: "soon"
`)
				_, err := config.LoadFrom(tempDir)
				Expect(err).To(HaveOccurred())
			})

			It("rejects a zero failure threshold", func() {
				writeConfig(`
circuit_breaker:
  failure_threshold: 0
`)
				_, err := config.LoadFrom(tempDir)
				Expect(err).To(HaveOccurred())
			})

			It("rejects jitter above 1", func() {
				writeConfig(`
retry:
  jitter: 1.5
`)
				_, err := config.LoadFrom(tempDir)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Options", func() {
		It("produces options that build a valid client", func() {
			cfg, err := config.LoadFrom(tempDir)
			Expect(err).NotTo(HaveOccurred())

			opts, err := cfg.Options()
			Expect(err).NotTo(HaveOccurred())

			client := courier.New(opts...)
			Expect(client.IsValid()).To(BeTrue())
			Expect(client.CircuitBreakerState().State).To(Equal(courier.StateClosed))
		})

		It("carries breaker settings through to the client", func() {
			writeConfig(`
circuit_breaker:
  failure_threshold: 2
  reset_timeout: "1s"
`)
			cfg, err := config.LoadFrom(tempDir)
			Expect(err).NotTo(HaveOccurred())

			opts, err := cfg.Options()
			Expect(err).NotTo(HaveOccurred())

			client := courier.New(opts...)
			Expect(client.IsValid()).To(BeTrue())
			Expect(client.CircuitBreakerState().ConsecutiveFailures).To(Equal(0))
		})
	})
})
