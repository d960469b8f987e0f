package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/internal/config"
)

func setenv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("ReadConfig", func() {
	var dataDir string

	BeforeEach(func() {
		dataDir = GinkgoT().TempDir()
		setenv("DATA_DIR", dataDir)
	})

	It("uses defaults when nothing is configured", func() {
		jc := config.ReadConfig()

		Expect(jc.DataDir()).To(Equal(dataDir))
		Expect(jc.ListenAddress()).To(Equal(":8080"))

		p := jc.GetPatternConfig()
		Expect(p.HashTag).To(Equal("#NintendoSwitch"))
		Expect(p.ArchivePrefix).To(Equal("//"))

		w := jc.GetWorkerConfig()
		Expect(w.SweepInterval).To(Equal(5 * time.Second))
		Expect(w.ArchiveDeleteRemote).To(BeTrue())
		Expect(w.PollTimeout).To(Equal(time.Second))

		s := jc.GetStoreConfig()
		Expect(s.DatabasePath).To(Equal(filepath.Join(dataDir, "tmdnlcl.db")))
		Expect(s.BlobDir).To(Equal(filepath.Join(dataDir, "media")))

		tc := jc.GetTwitterConfig()
		Expect(tc.RequestsPerSec).To(Equal(1.0))
		Expect(tc.Burst).To(Equal(5))
		Expect(tc.UserCacheSize).To(Equal(1000))
		Expect(tc.UserCacheTTL).To(Equal(time.Hour))
	})

	It("reads the env file from the data dir", func() {
		Expect(os.WriteFile(filepath.Join(dataDir, ".env"), []byte("HASH_TAG=#Tag\nWORKERS=3\n"), 0o600)).To(Succeed())
		DeferCleanup(os.Unsetenv, "HASH_TAG")
		DeferCleanup(os.Unsetenv, "WORKERS")

		jc := config.ReadConfig()
		Expect(jc.GetPatternConfig().HashTag).To(Equal("#Tag"))
		Expect(jc.GetWorkerConfig().Workers).To(Equal(3))
		Expect(jc.GetTwitterConfig().SearchKeyword).To(Equal("#Tag"))
	})

	It("lets the environment override the config file", func() {
		path := filepath.Join(dataDir, "config.yaml")
		Expect(os.WriteFile(path, []byte("api_mode: search\nworkers: 8\nsweep_interval_seconds: 2\nsearch_keyword: speedrun\n"), 0o600)).To(Succeed())
		setenv("CONFIG_FILE", path)
		setenv("WORKERS", "2")

		jc := config.ReadConfig()
		tc := jc.GetTwitterConfig()
		Expect(tc.APIMode).To(Equal(config.APIModeSearch))
		Expect(tc.SearchKeyword).To(Equal("speedrun"))
		Expect(jc.GetWorkerConfig().Workers).To(Equal(2))
		Expect(jc.GetWorkerConfig().SweepInterval).To(Equal(2 * time.Second))
	})

	It("falls back to timeline for unknown api modes", func() {
		setenv("API_MODE", "stream")
		Expect(config.ReadConfig().GetTwitterConfig().APIMode).To(Equal(config.APIModeTimeline))
	})

	It("ignores malformed numbers", func() {
		setenv("WORKERS", "many")
		setenv("SWEEP_INTERVAL_SECONDS", "-1")
		jc := config.ReadConfig()
		Expect(jc.GetWorkerConfig().Workers).To(Equal(4))
		Expect(jc.GetWorkerConfig().SweepInterval).To(Equal(5 * time.Second))
	})
})

var _ = Describe("JobConfiguration getters", func() {
	It("converts numeric types", func() {
		jc := config.JobConfiguration{"a": 3.0, "b": "x", "d": 2}
		v, err := jc.GetInt("a", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(3))

		_, err = jc.GetInt("b", 1)
		Expect(err).To(HaveOccurred())

		Expect(jc.GetDuration("d", 9)).To(Equal(2 * time.Second))
		Expect(jc.GetDuration("missing", 9)).To(Equal(9 * time.Second))
		Expect(jc.GetFloat("a", 0)).To(Equal(3.0))
	})
})

var _ = Describe("ParseLogLevel", func() {
	It("maps known names and defaults to info", func() {
		Expect(config.ParseLogLevel("DEBUG")).To(Equal(logrus.DebugLevel))
		Expect(config.ParseLogLevel("warn")).To(Equal(logrus.WarnLevel))
		Expect(config.ParseLogLevel("loud")).To(Equal(logrus.InfoLevel))
	})
})
