package bgclient_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	bgclient "github.com/marconadas/bgapp-client-go"
)

var _ = Describe("ResolveEnvironment", func() {
	var savedEnv, savedOverride string

	BeforeEach(func() {
		savedEnv = os.Getenv("BGAPP_ENV")
		savedOverride = os.Getenv("BGAPP_URL_ADMIN_API")
	})

	AfterEach(func() {
		restore := func(key, value string) {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
		restore("BGAPP_ENV", savedEnv)
		restore("BGAPP_URL_ADMIN_API", savedOverride)
	})

	Context("with BGAPP_ENV=development", func() {
		BeforeEach(func() {
			os.Setenv("BGAPP_ENV", "development")
		})

		It("activates the development profile", func() {
			profile := bgclient.ResolveEnvironment()
			Expect(profile.IsDevelopment()).To(BeTrue())
			Expect(profile.BaseURL()).To(Equal("http://localhost:8085"))

			primary, ok := profile.PrimaryURL(bgclient.ServiceAdminAPI)
			Expect(ok).To(BeTrue())
			Expect(primary).To(Equal("http://localhost:8000"))
		})

		It("declares a primary URL for every known service", func() {
			profile := bgclient.ResolveEnvironment()
			for _, service := range []bgclient.ServiceName{
				bgclient.ServiceAdminAPI,
				bgclient.ServiceSTACBrowser,
				bgclient.ServiceGeoAPI,
				bgclient.ServiceKeycloak,
				bgclient.ServiceMinIO,
			} {
				_, ok := profile.PrimaryURL(service)
				Expect(ok).To(BeTrue(), "service %s should have a primary", service)
			}
		})
	})

	Context("with BGAPP_ENV=production", func() {
		BeforeEach(func() {
			os.Setenv("BGAPP_ENV", "production")
		})

		It("activates the production profile", func() {
			profile := bgclient.ResolveEnvironment()
			Expect(profile.IsDevelopment()).To(BeFalse())
			Expect(profile.BaseURL()).To(Equal("https://bgapp.ao"))

			primary, ok := profile.PrimaryURL(bgclient.ServiceGeoAPI)
			Expect(ok).To(BeTrue())
			Expect(primary).To(Equal("https://geoapi.bgapp.ao"))
		})

		It("applies per-service URL overrides", func() {
			os.Setenv("BGAPP_URL_ADMIN_API", "https://api.staging.bgapp.ao/")

			profile := bgclient.ResolveEnvironment()
			primary, ok := profile.PrimaryURL(bgclient.ServiceAdminAPI)
			Expect(ok).To(BeTrue())
			Expect(primary).To(Equal("https://api.staging.bgapp.ao"))
		})

		It("reports unknown services as absent", func() {
			profile := bgclient.ResolveEnvironment()
			_, ok := profile.PrimaryURL("no-such-service")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Services", func() {
		It("returns the configured services sorted by name", func() {
			os.Setenv("BGAPP_ENV", "production")
			profile := bgclient.ResolveEnvironment()

			services := profile.Services()
			Expect(services).To(HaveLen(5))
			for i := 1; i < len(services); i++ {
				Expect(string(services[i-1]) < string(services[i])).To(BeTrue())
			}
		})
	})
})

var _ = Describe("NewEnvironmentProfile", func() {
	It("copies the primaries map", func() {
		primaries := map[bgclient.ServiceName]string{
			"test-api": "http://a.example",
		}
		profile := bgclient.NewEnvironmentProfile(true, "http://base.example", primaries)

		primaries["test-api"] = "http://mutated.example"

		primary, ok := profile.PrimaryURL("test-api")
		Expect(ok).To(BeTrue())
		Expect(primary).To(Equal("http://a.example"))
	})
})
