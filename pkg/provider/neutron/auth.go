package neutron

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudseal/secallow/pkg/provider"
	"resty.dev/v3"
)

// Credentials is the identity material needed for one keystone session.
type Credentials struct {
	Username    string
	Password    string
	ProjectID   string
	ProjectName string
	AuthURL     string
}

type authRequest struct {
	Auth struct {
		Identity struct {
			Methods  []string `json:"methods"`
			Password struct {
				User struct {
					Name   string `json:"name"`
					Domain struct {
						ID string `json:"id"`
					} `json:"domain"`
					Password string `json:"password"`
				} `json:"user"`
			} `json:"password"`
		} `json:"identity"`
		Scope struct {
			Project struct {
				ID string `json:"id"`
			} `json:"project"`
		} `json:"scope"`
	} `json:"auth"`
}

type authResponse struct {
	Token struct {
		Catalog []struct {
			Type      string `json:"type"`
			Endpoints []struct {
				Interface string `json:"interface"`
				URL       string `json:"url"`
			} `json:"endpoints"`
		} `json:"catalog"`
	} `json:"token"`
}

// authenticate performs a keystone v3 password authentication and returns
// the issued token plus the public network service endpoint from the
// catalog.
func authenticate(ctx context.Context, restyClient *resty.Client, creds Credentials) (token, networkURL string, err error) {
	body := authRequest{}
	body.Auth.Identity.Methods = []string{"password"}
	body.Auth.Identity.Password.User.Name = creds.Username
	body.Auth.Identity.Password.User.Domain.ID = "default"
	body.Auth.Identity.Password.User.Password = creds.Password
	body.Auth.Scope.Project.ID = creds.ProjectID

	var result authResponse
	res, err := restyClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(keystoneURL(creds.AuthURL) + "/auth/tokens")
	if err != nil {
		return "", "", fmt.Errorf("keystone request failed: %w", err)
	}

	if res.IsError() {
		return "", "", &provider.Error{
			Code: provider.AuthFailureError,
			Msg:  fmt.Sprintf("keystone rejected credentials for %s (HTTP %d)", creds.Username, res.StatusCode()),
		}
	}

	token = res.Header().Get("X-Subject-Token")
	if token == "" {
		return "", "", &provider.Error{Code: provider.AuthFailureError, Msg: "keystone response carried no subject token"}
	}

	for _, service := range result.Token.Catalog {
		if service.Type != "network" {
			continue
		}
		for _, endpoint := range service.Endpoints {
			if endpoint.Interface == "public" {
				return token, strings.TrimSuffix(endpoint.URL, "/"), nil
			}
		}
	}
	return "", "", &provider.Error{Code: provider.InternalError, Msg: "no public network endpoint in service catalog"}
}

// keystoneURL normalizes an auth endpoint to its v3 root.
func keystoneURL(authURL string) string {
	url := strings.TrimSuffix(authURL, "/")
	if strings.HasSuffix(url, "/v3") {
		return url
	}
	if strings.HasSuffix(url, "/v2.0") {
		url = strings.TrimSuffix(url, "/v2.0")
	}
	return url + "/v3"
}
