package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/logger"
)

// ProviderSES identifica o provedor AWS SES
const ProviderSES = "ses"

// sesAPI é o subconjunto do cliente sesv2 usado pelo dispatcher
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESDispatcher envia submissões pela API v2 do AWS SES
type SESDispatcher struct {
	client   sesAPI
	renderer *Renderer
	logger   domain.Logger
}

// NewSESDispatcher cria o cliente SES. Sem credenciais estáticas usa a cadeia padrão da AWS.
func NewSESDispatcher(ctx context.Context, region, accessKey, secretKey string, renderer *Renderer, log domain.Logger) (*SESDispatcher, error) {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	log.Info("SES dispatcher initialized", map[string]interface{}{
		"region":             region,
		"static_credentials": accessKey != "",
	})

	return newSESDispatcher(sesv2.NewFromConfig(cfg), renderer, log), nil
}

func newSESDispatcher(client sesAPI, renderer *Renderer, log domain.Logger) *SESDispatcher {
	return &SESDispatcher{client: client, renderer: renderer, logger: log}
}

// Name retorna o identificador do provedor
func (s *SESDispatcher) Name() string {
	return ProviderSES
}

// Send entrega a submissão ao SES respeitando o deadline do contexto
func (s *SESDispatcher) Send(ctx context.Context, sub *domain.FormSubmission) (*domain.DispatchResult, error) {
	msg, err := s.renderer.Render(sub)
	if err != nil {
		return nil, &domain.DispatchError{Provider: ProviderSES, Reason: "render failed", Err: err}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		reason := sesReason(err)
		s.logger.WithContext(ctx).Error("SES send failed", err, map[string]interface{}{
			"recipient": logger.RedactEmail(msg.To),
			"reason":    reason,
		})
		return nil, &domain.DispatchError{Provider: ProviderSES, Reason: reason, Err: err}
	}

	messageID := aws.ToString(result.MessageId)
	s.logger.WithContext(ctx).Info("SES email sent", map[string]interface{}{
		"recipient":  logger.RedactEmail(msg.To),
		"message_id": messageID,
	})

	return &domain.DispatchResult{MessageID: messageID, Provider: ProviderSES}, nil
}

// sesReason traduz os erros conhecidos do SES em um motivo curto
func sesReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "MessageRejected":
			return "email rejected: " + apiErr.ErrorMessage()
		case "MailFromDomainNotVerifiedException", "MailFromDomainNotVerified":
			return "sender domain not verified: " + apiErr.ErrorMessage()
		case "ConfigurationSetDoesNotExistException":
			return "configuration set error: " + apiErr.ErrorMessage()
		default:
			return fmt.Sprintf("AWS SES error (%s): %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
	}

	return "unexpected error: " + err.Error()
}
