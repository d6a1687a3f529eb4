package tls_test

import (
	stdtls "crypto/tls"
)

func noSNIHello() *stdtls.ClientHelloInfo {
	return &stdtls.ClientHelloInfo{}
}

func helloFor(serverName string) *stdtls.ClientHelloInfo {
	return &stdtls.ClientHelloInfo{ServerName: serverName}
}
