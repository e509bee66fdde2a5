// Package k8s submits pipeline stages as Kubernetes Jobs.
package k8s

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

const appLabel = "customer-intention-trainer"

// ErrUnknownStage is returned for a stage the trainer binary does not have.
var ErrUnknownStage = errors.New("unknown pipeline stage")

// Stages lists the trainer subcommands that may run as a Job.
var Stages = []string{"split", "train", "optimize", "final", "evaluate", "publish", "run"}

// JobStatus is the coarse state of a submitted Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobSpec describes one stage submission. Empty claims fall back to
// emptyDir volumes.
type JobSpec struct {
	Stage       string
	Image       string
	Args        []string
	Env         map[string]string
	DataClaim   string
	ModelsClaim string
	CPU         string
	Memory      string
}

// JobInfo summarises a submitted Job.
type JobInfo struct {
	Name    string
	Stage   string
	Status  JobStatus
	Created metav1.Time
}

// Client provides Kubernetes API operations
type Client struct {
	clientset kubernetes.Interface
	namespace string
}

// NewClient creates a new Kubernetes client
func NewClient(namespace string) (*Client, error) {
	config, err := getKubeConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get kubernetes config")
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kubernetes clientset")
	}
	return NewClientWithClientset(clientset, namespace), nil
}

// NewClientWithClientset wraps an existing clientset.
func NewClientWithClientset(clientset kubernetes.Interface, namespace string) *Client {
	if namespace == "" {
		namespace = "default"
	}
	return &Client{clientset: clientset, namespace: namespace}
}

// getKubeConfig returns the Kubernetes configuration
func getKubeConfig() (*rest.Config, error) {
	// Try in-cluster config first
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

func validStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// SubmitStage creates a Job running `trainer <stage>` and returns its name.
func (c *Client) SubmitStage(ctx context.Context, spec JobSpec) (string, error) {
	if !validStage(spec.Stage) {
		return "", errors.Wrap(ErrUnknownStage, spec.Stage)
	}
	if spec.Image == "" {
		return "", errors.New("trainer image is required")
	}

	jobName := fmt.Sprintf("intention-%s-%s", spec.Stage, uuid.New().String()[:8])
	labels := map[string]string{
		"app":   appLabel,
		"stage": spec.Stage,
	}

	cpu, memory := spec.CPU, spec.Memory
	if cpu == "" {
		cpu = "1000m"
	}
	if memory == "" {
		memory = "2Gi"
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: spec.Env[k]})
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: c.namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            int32Ptr(0),
			TTLSecondsAfterFinished: int32Ptr(3600),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:    "trainer",
							Image:   spec.Image,
							Command: []string{"trainer"},
							Args:    append([]string{spec.Stage}, spec.Args...),
							Env:     env,
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceCPU:    parseQuantity(cpu),
									corev1.ResourceMemory: parseQuantity(memory),
								},
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "data", MountPath: "/app/data"},
								{Name: "models", MountPath: "/app/models"},
							},
						},
					},
					Volumes: []corev1.Volume{
						volume("data", spec.DataClaim),
						volume("models", spec.ModelsClaim),
					},
					RestartPolicy: corev1.RestartPolicyNever,
				},
			},
		},
	}

	if _, err := c.clientset.BatchV1().Jobs(c.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return "", errors.Wrap(err, "failed to create kubernetes job")
	}
	return jobName, nil
}

func volume(name, claim string) corev1.Volume {
	if claim == "" {
		return corev1.Volume{
			Name:         name,
			VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
		}
	}
	return corev1.Volume{
		Name: name,
		VolumeSource: corev1.VolumeSource{
			PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: claim},
		},
	}
}

// GetJobStatus retrieves the status of a Kubernetes Job
func (c *Client) GetJobStatus(ctx context.Context, jobName string) (JobStatus, error) {
	job, err := c.clientset.BatchV1().Jobs(c.namespace).Get(ctx, jobName, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrap(err, "failed to get job status")
	}
	return statusOf(job), nil
}

func statusOf(job *batchv1.Job) JobStatus {
	switch {
	case job.Status.Succeeded > 0:
		return JobCompleted
	case job.Status.Failed > 0:
		return JobFailed
	case job.Status.Active > 0:
		return JobRunning
	}
	return JobPending
}

// ListJobs returns every stage Job, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]JobInfo, error) {
	jobs, err := c.clientset.BatchV1().Jobs(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + appLabel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}

	out := make([]JobInfo, 0, len(jobs.Items))
	for i := range jobs.Items {
		job := &jobs.Items[i]
		out = append(out, JobInfo{
			Name:    job.Name,
			Stage:   job.Labels["stage"],
			Status:  statusOf(job),
			Created: job.CreationTimestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Created.Before(&out[i].Created) })
	return out, nil
}

// DeleteJob deletes a Kubernetes Job
func (c *Client) DeleteJob(ctx context.Context, jobName string) error {
	propagationPolicy := metav1.DeletePropagationBackground
	err := c.clientset.BatchV1().Jobs(c.namespace).Delete(ctx, jobName, metav1.DeleteOptions{
		PropagationPolicy: &propagationPolicy,
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete job")
	}
	return nil
}

func int32Ptr(i int32) *int32 {
	return &i
}

func parseQuantity(s string) resource.Quantity {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return resource.MustParse("0")
	}
	return q
}
