package bootstrap

import (
	"crypto/x509"
	"testing"

	"github.com/fulldump/biff"
	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {

	biff.Alternative("Logger", func(a *biff.A) {

		a.Alternative("Json", func(a *biff.A) {
			l, err := NewLogger("debug", "json")
			biff.AssertNil(err)
			biff.AssertEqual(l.GetLevel(), logrus.DebugLevel)
			_, ok := l.Formatter.(*logrus.JSONFormatter)
			biff.AssertTrue(ok)
		})

		a.Alternative("Default format", func(a *biff.A) {
			l, err := NewLogger("info", "")
			biff.AssertNil(err)
			_, ok := l.Formatter.(*logrus.TextFormatter)
			biff.AssertTrue(ok)
		})

		a.Alternative("Bad level", func(a *biff.A) {
			_, err := NewLogger("loud", "text")
			biff.AssertNotNil(err)
		})

		a.Alternative("Bad format", func(a *biff.A) {
			_, err := NewLogger("info", "xml")
			biff.AssertNotNil(err)
		})
	})
}

func TestSelfSignedCertificate(t *testing.T) {

	certificate, err := selfSignedCertificate()
	biff.AssertNil(err)
	biff.AssertEqual(len(certificate.Certificate), 1)

	parsed, err := x509.ParseCertificate(certificate.Certificate[0])
	biff.AssertNil(err)
	biff.AssertNil(parsed.VerifyHostname("localhost"))
}
