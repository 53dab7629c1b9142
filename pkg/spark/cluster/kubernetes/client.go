// Copyright (c) 2026 The dataplatform Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kubernetes

import (
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
)

// RestConfig builds a REST config for apiServer. Credentials come from the
// kubeconfig (KUBECONFIG or ~/.kube/config, context spark.kubernetes.context)
// and are then overridden by the spark.kubernetes.authenticate.* options.
func RestConfig(apiServer string, c conf.Reader) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{
		ClusterInfo: clientcmdapi.Cluster{Server: apiServer},
	}
	if kubeContext, ok := c.Get(conf.KubernetesContext); ok {
		overrides.CurrentContext = kubeContext
	}

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		if !clientcmd.IsEmptyConfig(err) {
			return nil, errors.Wrap(err, "failed to load kubeconfig")
		}
		cfg = &rest.Config{Host: apiServer}
	}
	applyAuthConf(cfg, c)
	return cfg, nil
}

// applyAuthConf copies the spark authentication options onto cfg.
func applyAuthConf(cfg *rest.Config, c conf.Reader) {
	if token, ok := c.Get(conf.KubernetesOAuthToken); ok && token != "" {
		cfg.BearerToken = token
		cfg.BearerTokenFile = ""
		cfg.Username, cfg.Password = "", ""
	}
	if caFile, ok := c.Get(conf.KubernetesCACertFile); ok && caFile != "" {
		cfg.TLSClientConfig.CAFile = caFile
		cfg.TLSClientConfig.CAData = nil
		cfg.TLSClientConfig.Insecure = false
	}
	if certFile, ok := c.Get(conf.KubernetesClientCertFile); ok && certFile != "" {
		cfg.TLSClientConfig.CertFile = certFile
		cfg.TLSClientConfig.CertData = nil
	}
	if keyFile, ok := c.Get(conf.KubernetesClientKeyFile); ok && keyFile != "" {
		cfg.TLSClientConfig.KeyFile = keyFile
		cfg.TLSClientConfig.KeyData = nil
	}
}

// NewScheme returns the scheme executor management needs.
func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return scheme
}

// NewClient builds a controller-runtime client for cfg.
func NewClient(cfg *rest.Config) (client.Client, error) {
	kubeClient, err := client.New(cfg, client.Options{Scheme: NewScheme()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kubernetes client")
	}
	return kubeClient, nil
}
