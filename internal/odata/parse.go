package odata

import (
	"net/url"
	"sort"
	"strings"
)

const (
	DefaultSysPath  = "s"
	DefaultHelpPath = "help"
	metadataToken   = "$metadata"
)

// Parser classifies (method, path) pairs using a small fixed grammar:
//
//	<method,uri>        ::= basic_uri | system_uri | table_uri
//	<method,basic_uri>  ::= <GET,'help'> | <POST,'create_account'>
//	<method,system_uri> ::= <POST,schema 's' system_op>
//	                    |   <GET,schema 's' 'reset_password' token>
//	<method,table_uri>  ::= <GET,schema> | <GET,schema table '$metadata'>
//	                    |   <GET|POST|PUT|DELETE,schema table>
type Parser struct {
	Compiler Compiler
	SysPath  string
	HelpPath string
}

// NewParser returns a parser with default keywords.
func NewParser(c Compiler) *Parser {
	return &Parser{Compiler: c, SysPath: DefaultSysPath, HelpPath: DefaultHelpPath}
}

// Parse parses a request URI (path plus optional query string).
func (p *Parser) Parse(method, uri string) (*Descriptor, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, parseErr("Invalid URI: " + uri)
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, invalidErr("Invalid query string: " + u.RawQuery)
	}
	return p.ParseRequest(method, u.Path, query)
}

// ParseRequest parses an already split request.
func (p *Parser) ParseRequest(method, path string, query url.Values) (*Descriptor, error) {
	tokens, ok := Tokenize(path)
	if !ok {
		return nil, noMatch(method, path)
	}
	desc := p.parseBasic(method, tokens)
	if desc == nil {
		desc = p.parseSystem(method, tokens)
	}
	if desc == nil {
		desc = p.parseTable(method, tokens)
	}
	if desc == nil {
		return nil, noMatch(method, path)
	}
	if desc.Table != "" && strings.Contains(desc.Table, "(") {
		return nil, unsupportedErr("The form /schema/entity(key) is not supported. Use $filter instead: " + path)
	}
	if err := p.applyQuery(desc, query); err != nil {
		return nil, err
	}
	return desc, nil
}

// Tokenize splits a path into segments. A single trailing slash is ignored;
// any other empty segment makes the path invalid.
func Tokenize(path string) ([]string, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}
	tokens := strings.Split(path[1:], "/")
	if len(tokens) > 1 && tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	for _, tok := range tokens {
		if tok == "" {
			return nil, false
		}
	}
	return tokens, true
}

func noMatch(method, path string) error {
	return parseErr("No operation matches " + method + " " + path)
}

func (p *Parser) helpPath() string {
	if p.HelpPath == "" {
		return DefaultHelpPath
	}
	return p.HelpPath
}

func (p *Parser) sysPath() string {
	if p.SysPath == "" {
		return DefaultSysPath
	}
	return p.SysPath
}

func (p *Parser) parseBasic(method string, tokens []string) *Descriptor {
	if len(tokens) != 1 {
		return nil
	}
	if method == "GET" && tokens[0] == p.helpPath() {
		return &Descriptor{QueryType: QueryHelp}
	}
	if method == "POST" && tokens[0] == string(QueryCreateAccount) {
		return &Descriptor{QueryType: QueryCreateAccount}
	}
	return nil
}

func (p *Parser) parseSystem(method string, tokens []string) *Descriptor {
	if len(tokens) < 3 || tokens[1] != p.sysPath() {
		return nil
	}
	if method == "POST" && len(tokens) == 3 && IsSystemOp(tokens[2]) {
		return &Descriptor{QueryType: QueryType(tokens[2]), Schema: tokens[0]}
	}
	if method == "GET" && len(tokens) == 4 && tokens[2] == string(QueryResetPassword) {
		return &Descriptor{QueryType: QueryResetPassword, Schema: tokens[0], ResetToken: tokens[3]}
	}
	return nil
}

func (p *Parser) parseTable(method string, tokens []string) *Descriptor {
	switch len(tokens) {
	case 1:
		if method == "GET" {
			return &Descriptor{QueryType: QueryServiceDef, Schema: tokens[0]}
		}
	case 2:
		var qt QueryType
		switch method {
		case "GET":
			qt = QuerySelect
		case "POST":
			qt = QueryInsert
		case "PUT":
			qt = QueryUpdate
		case "DELETE":
			qt = QueryDelete
		default:
			return nil
		}
		return &Descriptor{QueryType: qt, Schema: tokens[0], Table: tokens[1]}
	case 3:
		if method == "GET" && tokens[2] == metadataToken {
			return &Descriptor{QueryType: QueryMetadata, Schema: tokens[0], Table: tokens[1]}
		}
	}
	return nil
}

func (p *Parser) applyQuery(desc *Descriptor, query url.Values) error {
	switch desc.QueryType {
	case QuerySelect:
		clauses, err := p.compile(query)
		if err != nil {
			return err
		}
		desc.Clauses = clauses
		desc.SQL = SelectSQL(desc.Schema, desc.Table, clauses)
	case QueryInsert:
		if len(query) > 0 {
			return invalidErr("Parameters are not supported in POST: " + query.Encode())
		}
	case QueryUpdate, QueryDelete:
		clauses, err := p.compile(query)
		if err != nil {
			return err
		}
		for _, key := range sortedKeys(query) {
			if key != "$filter" {
				return invalidErr("Only $filter is supported for " + string(desc.QueryType) + ": " + key)
			}
		}
		desc.Clauses = clauses
		if desc.QueryType == QueryDelete {
			desc.SQL = "delete from " + desc.Schema + "." + desc.Table + Join(clauses)
		}
	}
	return nil
}

func (p *Parser) compile(query url.Values) ([]Clause, error) {
	params := make(map[string]string, len(query))
	for _, key := range sortedKeys(query) {
		values := query[key]
		if len(values) > 1 {
			return nil, invalidErr("Duplicate query parameter: " + key)
		}
		if len(values) == 1 {
			params[key] = values[0]
		} else {
			params[key] = ""
		}
	}
	return p.Compiler.Compile(params)
}

func sortedKeys(query url.Values) []string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
