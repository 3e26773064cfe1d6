/*
Copyright (c) The anyrpc Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"regexp"

	"github.com/anyrpc-go/anyrpc/connstate"
	"github.com/anyrpc-go/anyrpc/metrics"
	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpc/jsonrpc"
	"github.com/anyrpc-go/anyrpc/rpc/msgpackrpc"
	"github.com/anyrpc-go/anyrpc/rpc/xmlrpc"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
)

// jsonContentHandler decodes a JSON-RPC envelope, dispatches it through
// reg with metrics instrumentation, and encodes the reply. A handler
// returning (nil, nil) signals a notification: connstate skips the
// socket write entirely under netstring framing, and composeResponse's
// nil-body branch emits an empty-bodied reply under HTTP framing.
func jsonContentHandler(reg *registry.Registry, rec *metrics.Recorder, transport string) func([]byte) ([]byte, error) {
	return func(body []byte) ([]byte, error) {
		req, err := jsonrpc.DecodeRequest(stream.NewConstString(body))
		if err != nil {
			return encodeJSONResponse(jsonrpc.InvalidRequestResponse(err))
		}
		result, execErr := metrics.InstrumentedExecute(rec, reg, transport, "json", req.Method, req.Params)
		if req.ID == nil {
			return nil, nil
		}
		if execErr != nil {
			return encodeJSONResponse(jsonrpc.Response{ID: req.ID, Err: rpcerr.AsError(execErr)})
		}
		return encodeJSONResponse(jsonrpc.Response{ID: req.ID, Result: result})
	}
}

func encodeJSONResponse(resp jsonrpc.Response) ([]byte, error) {
	out := stream.NewSegmented()
	if err := jsonrpc.EncodeResponse(out, resp); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// xmlContentHandler is xmlrpc's analogue of jsonContentHandler. XML-RPC
// has no notification concept, so every call gets a reply.
func xmlContentHandler(reg *registry.Registry, rec *metrics.Recorder, transport string) func([]byte) ([]byte, error) {
	return func(body []byte) ([]byte, error) {
		req, err := xmlrpc.DecodeRequest(stream.NewConstString(body))
		if err != nil {
			return encodeXMLResponse(xmlrpc.Response{Fault: rpcerr.AsError(err)})
		}
		result, execErr := metrics.InstrumentedExecute(rec, reg, transport, "xml", req.Method, req.Params)
		if execErr != nil {
			return encodeXMLResponse(xmlrpc.Response{Fault: rpcerr.AsError(execErr)})
		}
		return encodeXMLResponse(xmlrpc.Response{Result: result})
	}
}

func encodeXMLResponse(resp xmlrpc.Response) ([]byte, error) {
	out := stream.NewSegmented()
	if err := xmlrpc.EncodeResponse(out, resp); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// msgpackContentHandler is msgpackrpc's analogue of jsonContentHandler.
func msgpackContentHandler(reg *registry.Registry, rec *metrics.Recorder, transport string) func([]byte) ([]byte, error) {
	return func(body []byte) ([]byte, error) {
		req, err := msgpackrpc.DecodeRequest(stream.NewConstString(body))
		if err != nil {
			return encodeMsgpackResponse(msgpackrpc.Response{Err: rpcerr.AsError(err)})
		}
		result, execErr := metrics.InstrumentedExecute(rec, reg, transport, "msgpack", req.Method, req.Params)
		if req.IsNotification {
			return nil, nil
		}
		if execErr != nil {
			return encodeMsgpackResponse(msgpackrpc.Response{ID: req.ID, Err: rpcerr.AsError(execErr)})
		}
		return encodeMsgpackResponse(msgpackrpc.Response{ID: req.ID, Result: result})
	}
}

func encodeMsgpackResponse(resp msgpackrpc.Response) ([]byte, error) {
	out := stream.NewSegmented()
	if err := msgpackrpc.EncodeResponse(out, resp); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// httpContentHandlers builds the Content-Type-dispatched handler list
// the HTTP listener multiplexes over, one entry per enabled codec,
// matching AnyHttpServer's multi-codec dispatch.
func httpContentHandlers(reg *registry.Registry, rec *metrics.Recorder, codecs enabledCodecs) []connstate.ContentHandler {
	var handlers []connstate.ContentHandler
	if codecs.json {
		handlers = append(handlers, connstate.ContentHandler{
			Pattern: regexp.MustCompile("application/json-rpc"),
			Handle:  jsonContentHandler(reg, rec, "http"),
		})
	}
	if codecs.xml {
		handlers = append(handlers, connstate.ContentHandler{
			Pattern: regexp.MustCompile("text/xml"),
			Handle:  xmlContentHandler(reg, rec, "http"),
		})
	}
	if codecs.msgpack {
		handlers = append(handlers, connstate.ContentHandler{
			Pattern: regexp.MustCompile("application/messagepack-rpc"),
			Handle:  msgpackContentHandler(reg, rec, "http"),
		})
	}
	return handlers
}

// netstringContentHandler builds the single-entry handler list a
// single-codec netstring listener uses, matching the original design's
// JsonTcpServer/XmlTcpServer/MessagePackTcpServer split (one codec per
// TCP port, no content-type dispatch).
func netstringContentHandler(reg *registry.Registry, rec *metrics.Recorder, codec string) []connstate.ContentHandler {
	var handle func([]byte) ([]byte, error)
	switch codec {
	case "json":
		handle = jsonContentHandler(reg, rec, "netstring")
	case "xml":
		handle = xmlContentHandler(reg, rec, "netstring")
	case "msgpack":
		handle = msgpackContentHandler(reg, rec, "netstring")
	}
	return []connstate.ContentHandler{{Handle: handle}}
}

type enabledCodecs struct {
	json, xml, msgpack bool
}
