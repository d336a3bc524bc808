package vies

import (
	"bytes"
	"encoding/xml"
	"strings"
)

const (
	soapEnvNS  = "http://schemas.xmlsoap.org/soap/envelope/"
	checkVatNS = "urn:ec.europa.eu:taxud:vies:services:checkVat:types"
)

// wsdlDefinitions picks the soap:address location out of a service description.
type wsdlDefinitions struct {
	Services []struct {
		Ports []struct {
			Address struct {
				Location string `xml:"location,attr"`
			} `xml:"address"`
		} `xml:"port"`
	} `xml:"service"`
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault    *soapFault        `xml:"Fault"`
		Response *checkVatResponse `xml:"checkVatResponse"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail struct {
		Text string `xml:",innerxml"`
	} `xml:"detail"`
}

func (f *soapFault) toFault() *Fault {
	return &Fault{
		Code:   strings.TrimSpace(f.Code),
		String: strings.TrimSpace(f.String),
		Detail: strings.TrimSpace(f.Detail.Text),
	}
}

type checkVatResponse struct {
	CountryCode string `xml:"countryCode"`
	VATNumber   string `xml:"vatNumber"`
	RequestDate string `xml:"requestDate"`
	Valid       bool   `xml:"valid"`
	Name        string `xml:"name"`
	Address     string `xml:"address"`
}

func checkVatRequest(countryCode, vatNumber string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="` + soapEnvNS + `" xmlns:urn="` + checkVatNS + `">`)
	b.WriteString(`<soapenv:Header/><soapenv:Body><urn:checkVat><urn:countryCode>`)
	_ = xml.EscapeText(&b, []byte(countryCode))
	b.WriteString(`</urn:countryCode><urn:vatNumber>`)
	_ = xml.EscapeText(&b, []byte(vatNumber))
	b.WriteString(`</urn:vatNumber></urn:checkVat></soapenv:Body></soapenv:Envelope>`)
	return b.Bytes()
}
